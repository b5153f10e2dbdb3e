package l4link

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpatialIndex_RegionQuery(t *testing.T) {
	xs := []float64{0, 3, 5.1, -4, 10, 2.9}
	ys := []float64{0, 4, 0, -3, 10, 4}
	si := NewSpatialIndex(5)
	si.Build(xs, ys)

	// (3,4) is exactly 5 away: inclusive. (5.1,0) is just outside.
	assert.Equal(t, []int{0, 1, 3, 5}, si.RegionQuery(0, 0, 5))
	assert.Equal(t, []int{4}, si.RegionQuery(9, 9, 5))
	assert.Empty(t, si.RegionQuery(-30, 40, 5))
}

func TestSpatialIndex_NegativeCoordinates(t *testing.T) {
	si := NewSpatialIndex(1)
	si.Build([]float64{-0.5, 0.5, -1.5}, []float64{-0.5, 0.5, -1.5})
	assert.Equal(t, []int{0, 1}, si.RegionQuery(0, 0, 1))
	assert.Equal(t, []int{0, 2}, si.RegionQuery(-1, -1, 1))
}

func TestCellKey_Unique(t *testing.T) {
	seen := make(map[int64][2]int64)
	for x := int64(-20); x <= 20; x++ {
		for y := int64(-20); y <= 20; y++ {
			k := cellKey(x, y)
			if prev, dup := seen[k]; dup {
				t.Fatalf("cellKey collision: (%d,%d) and (%d,%d)", x, y, prev[0], prev[1])
			}
			seen[k] = [2]int64{x, y}
		}
	}
}
