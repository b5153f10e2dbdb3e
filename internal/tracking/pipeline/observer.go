package pipeline

import (
	"reflect"

	"github.com/banshee-data/confocal.track/internal/tracking/l4link"
)

// Observer receives progress reports from Run. Implementations must be
// safe to call from the goroutine running Run; calls are never concurrent.
type Observer interface {
	// FramesProcessed is called once the projection and detection stage
	// has finished all frames.
	FramesProcessed(runID string, frames, detections int)
	// EmptyResult is called when the run ends early with an empty result.
	EmptyResult(runID string, reason string)
	// Linked is called after linking with the number of trajectories and
	// the per-frame linker statistics.
	Linked(runID string, trajectories int, frames []l4link.FrameStats)
}

// logObserver writes observer events to the diag stream.
type logObserver struct{}

func (logObserver) FramesProcessed(runID string, frames, detections int) {
	diagf("run %s: projected and detected %d frames, %d candidates", runID, frames, detections)
}

func (logObserver) EmptyResult(runID string, reason string) {
	diagf("run %s: empty result: %s", runID, reason)
}

func (logObserver) Linked(runID string, trajectories int, frames []l4link.FrameStats) {
	diagf("run %s: linked %d trajectories over %d frames", runID, trajectories, len(frames))
	for _, s := range frames {
		tracef("run %s: %s", runID, s)
	}
}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
