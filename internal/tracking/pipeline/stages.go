package pipeline

import (
	"github.com/banshee-data/confocal.track/internal/tracking/l2frames"
	"github.com/banshee-data/confocal.track/internal/tracking/l3detect"
)

// DetectStage localises candidates in one projected frame. It is called
// concurrently for different frames, so implementations must not keep
// per-call state. Every returned candidate must carry Frame equal to
// frame.Index and a Seq unique within the frame; the linker rejects
// duplicates with l4link.ErrDuplicateSeq. *l3detect.Detector satisfies it.
type DetectStage interface {
	Detect(frame l2frames.Frame) []l3detect.Candidate
}

type runOptions struct {
	observer Observer
	detector DetectStage
	workers  int
}

// Option customises a Run.
type Option func(*runOptions)

// WithObserver routes progress reports to o instead of the diag log.
// A nil observer keeps the default.
func WithObserver(o Observer) Option {
	return func(ro *runOptions) {
		if !isNilInterface(o) {
			ro.observer = o
		}
	}
}

// WithDetector replaces the detector built from the plan.
func WithDetector(d DetectStage) Option {
	return func(ro *runOptions) {
		if !isNilInterface(d) {
			ro.detector = d
		}
	}
}

// WithWorkers overrides the plan's worker count. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(ro *runOptions) {
		if n > 0 {
			ro.workers = n
		}
	}
}
