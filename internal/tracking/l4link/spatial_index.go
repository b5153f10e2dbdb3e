package l4link

import (
	"math"
	"slices"
)

// SpatialIndex is a uniform grid over 2-D positions for radius queries.
// With CellSize equal to the query radius a 3×3 block of cells covers
// every possible neighbour.
type SpatialIndex struct {
	CellSize float64
	Grid     map[int64][]int // cell key → point indices
	xs, ys   []float64
}

// NewSpatialIndex creates an empty index with the given cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{CellSize: cellSize, Grid: make(map[int64][]int)}
}

// Build indexes the positions (xs[i], ys[i]). Indices returned by
// RegionQuery refer to these slices.
func (si *SpatialIndex) Build(xs, ys []float64) {
	si.xs, si.ys = xs, ys
	si.Grid = make(map[int64][]int, len(xs))
	for i := range xs {
		cx, cy := si.cell(xs[i], ys[i])
		key := cellKey(cx, cy)
		si.Grid[key] = append(si.Grid[key], i)
	}
}

// RegionQuery returns, in ascending order, the indices of indexed points
// within eps (inclusive) of (x, y). eps must not exceed CellSize.
func (si *SpatialIndex) RegionQuery(x, y, eps float64) []int {
	var out []int
	eps2 := eps * eps
	cx, cy := si.cell(x, y)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, idx := range si.Grid[cellKey(cx+dx, cy+dy)] {
				ddx, ddy := si.xs[idx]-x, si.ys[idx]-y
				if ddx*ddx+ddy*ddy <= eps2 {
					out = append(out, idx)
				}
			}
		}
	}
	slices.Sort(out)
	return out
}

func (si *SpatialIndex) cell(x, y float64) (int64, int64) {
	return int64(math.Floor(x / si.CellSize)), int64(math.Floor(y / si.CellSize))
}

// cellKey packs signed cell coordinates into one key: zigzag to make them
// non-negative, then Szudzik's pairing function.
func cellKey(cx, cy int64) int64 {
	a, b := zigzag(cx), zigzag(cy)
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

func zigzag(v int64) int64 {
	if v >= 0 {
		return 2 * v
	}
	return -2*v - 1
}
