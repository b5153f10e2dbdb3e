package l1stack

import (
	"math"

	"github.com/banshee-data/confocal.track/internal/tracking"
)

// Axis positions within Shape.
const (
	AxisTime = iota
	AxisDepth
	AxisHeight
	AxisWidth
	numAxes
)

// Stack is an immutable time series of volumes. Data is row-major over
// (time, depth, height, width).
type Stack struct {
	shape [numAxes]int
	data  []float64
}

// New validates shape and data and returns a Stack. The stack keeps its
// own copy of data. Only the time axis may be zero.
func New(shape []int, data []float64) (*Stack, error) {
	if len(shape) != numAxes {
		return nil, tracking.NewShapeError(shape, "expected 4 axes (time, depth, height, width), got %d", len(shape))
	}
	var s Stack
	n := 1
	for i, v := range shape {
		if v < 0 || (i != AxisTime && v == 0) {
			return nil, tracking.NewShapeError(shape, "axis %d has invalid length %d", i, v)
		}
		s.shape[i] = v
		n *= v
	}
	if len(data) != n {
		return nil, tracking.NewShapeError(shape, "data length %d does not match shape (want %d)", len(data), n)
	}
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, tracking.NewShapeError(shape, "non-finite intensity at offset %d", i)
		}
		if v < 0 {
			return nil, tracking.NewShapeError(shape, "negative intensity %g at offset %d", v, i)
		}
	}
	s.data = append([]float64(nil), data...)
	return &s, nil
}

// FromVolumes builds a Stack from nested [t][z][y][x] slices. Ragged input
// is a ShapeError.
func FromVolumes(vols [][][][]float64) (*Stack, error) {
	if len(vols) == 0 {
		return nil, tracking.NewShapeError([]int{0}, "no volumes; depth, height and width are undefined")
	}
	depth := len(vols[0])
	if depth == 0 {
		return nil, tracking.NewShapeError([]int{len(vols), 0}, "empty volume")
	}
	height := len(vols[0][0])
	if height == 0 {
		return nil, tracking.NewShapeError([]int{len(vols), depth, 0}, "empty slice")
	}
	width := len(vols[0][0][0])
	shape := []int{len(vols), depth, height, width}

	data := make([]float64, 0, len(vols)*depth*height*width)
	for t, vol := range vols {
		if len(vol) != depth {
			return nil, tracking.NewShapeError(shape, "volume %d has depth %d", t, len(vol))
		}
		for z, slice := range vol {
			if len(slice) != height {
				return nil, tracking.NewShapeError(shape, "volume %d slice %d has height %d", t, z, len(slice))
			}
			for y, row := range slice {
				if len(row) != width {
					return nil, tracking.NewShapeError(shape, "volume %d slice %d row %d has width %d", t, z, y, len(row))
				}
				data = append(data, row...)
			}
		}
	}
	return New(shape, data)
}

// Shape returns (time, depth, height, width).
func (s *Stack) Shape() []int {
	return []int{s.shape[0], s.shape[1], s.shape[2], s.shape[3]}
}

// Len returns the number of time points.
func (s *Stack) Len() int { return s.shape[AxisTime] }

// Depth returns the number of slices per volume.
func (s *Stack) Depth() int { return s.shape[AxisDepth] }

// Height returns the slice height in pixels.
func (s *Stack) Height() int { return s.shape[AxisHeight] }

// Width returns the slice width in pixels.
func (s *Stack) Width() int { return s.shape[AxisWidth] }

// At returns the intensity at (t, z, y, x).
func (s *Stack) At(t, z, y, x int) float64 {
	return s.data[s.offset(t, z, y, x)]
}

// Slice returns a read-only view of one depth slice, row-major. Callers
// must not modify the returned slice.
func (s *Stack) Slice(t, z int) []float64 {
	plane := s.shape[AxisHeight] * s.shape[AxisWidth]
	start := s.offset(t, z, 0, 0)
	return s.data[start : start+plane : start+plane]
}

func (s *Stack) offset(t, z, y, x int) int {
	return ((t*s.shape[AxisDepth]+z)*s.shape[AxisHeight]+y)*s.shape[AxisWidth] + x
}
