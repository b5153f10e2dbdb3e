package l2frames

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/confocal.track/internal/testutil"
	"github.com/banshee-data/confocal.track/internal/tracking"
	"github.com/banshee-data/confocal.track/internal/tracking/l1stack"
)

func TestProject_MaxAlongDepth(t *testing.T) {
	vols := [][][][]float64{
		{
			{{1, 9}, {3, 0}},
			{{5, 2}, {0, 4}},
			{{2, 2}, {7, 1}},
		},
	}
	stack, err := l1stack.FromVolumes(vols)
	require.NoError(t, err)

	frames, err := Project(stack)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []float64{5, 9, 7, 4}, frames[0].Pix)
	assert.Equal(t, 7.0, frames[0].At(0, 1))
	assert.Equal(t, 0, frames[0].Index)
}

func TestProject_CountAndShape(t *testing.T) {
	for _, tc := range []struct{ T, Z, H, W int }{
		{1, 1, 4, 4},
		{5, 3, 16, 24},
		{7, 1, 9, 5},
	} {
		stack := testutil.NewStackBuilder(tc.T, tc.Z, tc.H, tc.W).Noise(1, 42).MustBuild()
		frames, err := Project(stack)
		require.NoError(t, err)
		require.Len(t, frames, tc.T)
		for i, f := range frames {
			assert.Equal(t, i, f.Index)
			assert.Equal(t, tc.W, f.Width)
			assert.Equal(t, tc.H, f.Height)
			assert.Len(t, f.Pix, tc.W*tc.H)
		}
	}
}

func TestProject_Deterministic(t *testing.T) {
	stack := testutil.NewStackBuilder(4, 5, 20, 20).
		Noise(3, 7).
		Blob(testutil.Blob{X: 10, Y: 10, Z: 2, Sigma: 1.5, Amplitude: 200}).
		MustBuild()

	a, err := Project(stack)
	require.NoError(t, err)
	b, err := Project(stack)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("projection not deterministic (-first +second):\n%s", diff)
	}
}

func TestProject_EmptyStack(t *testing.T) {
	stack, err := l1stack.New([]int{0, 2, 4, 4}, nil)
	require.NoError(t, err)
	frames, err := Project(stack)
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestProject_Nil(t *testing.T) {
	_, err := Project(nil)
	var shapeErr *tracking.ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestProjectFrame_OutOfRange(t *testing.T) {
	stack := testutil.NewStackBuilder(2, 1, 3, 3).MustBuild()
	_, err := ProjectFrame(stack, 2)
	var shapeErr *tracking.ShapeError
	assert.True(t, errors.As(err, &shapeErr))
	_, err = ProjectFrame(stack, -1)
	assert.True(t, errors.As(err, &shapeErr))
}

func TestNewFrame_PanicsOnMismatch(t *testing.T) {
	assert.Panics(t, func() { NewFrame(0, 2, 2, []float64{1}) })
	f := NewFrame(3, 1, 2, []float64{1, 2})
	assert.Equal(t, 2.0, f.At(0, 1))
}
