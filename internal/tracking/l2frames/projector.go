package l2frames

import (
	"github.com/banshee-data/confocal.track/internal/tracking"
	"github.com/banshee-data/confocal.track/internal/tracking/l1stack"
)

// Frame is one 2-D intensity image, the depth-wise maximum of a volume.
// Pix is row-major and must not be modified once the frame is built.
type Frame struct {
	Index  int
	Width  int
	Height int
	Pix    []float64
}

// NewFrame wraps pix as a frame. It panics if len(pix) != width*height;
// it is meant for tests and synthetic inputs.
func NewFrame(index, width, height int, pix []float64) Frame {
	if len(pix) != width*height {
		panic("l2frames: pixel count does not match frame size")
	}
	return Frame{Index: index, Width: width, Height: height, Pix: pix}
}

// At returns the intensity at (x, y).
func (f Frame) At(x, y int) float64 {
	return f.Pix[y*f.Width+x]
}

// Project returns one frame per time index of the stack.
func Project(stack *l1stack.Stack) ([]Frame, error) {
	if stack == nil {
		return nil, tracking.NewShapeError(nil, "nil stack")
	}
	frames := make([]Frame, stack.Len())
	for t := range frames {
		f, err := ProjectFrame(stack, t)
		if err != nil {
			return nil, err
		}
		frames[t] = f
	}
	return frames, nil
}

// ProjectFrame computes the maximum-intensity projection of time index t.
// It is safe to call concurrently for different t.
func ProjectFrame(stack *l1stack.Stack, t int) (Frame, error) {
	if stack == nil {
		return Frame{}, tracking.NewShapeError(nil, "nil stack")
	}
	if t < 0 || t >= stack.Len() {
		return Frame{}, tracking.NewShapeError(stack.Shape(), "time index %d out of range", t)
	}

	pix := make([]float64, stack.Width()*stack.Height())
	copy(pix, stack.Slice(t, 0))
	for z := 1; z < stack.Depth(); z++ {
		for i, v := range stack.Slice(t, z) {
			if v > pix[i] {
				pix[i] = v
			}
		}
	}
	return Frame{Index: t, Width: stack.Width(), Height: stack.Height(), Pix: pix}, nil
}
