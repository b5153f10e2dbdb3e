package l4link

import (
	"github.com/banshee-data/confocal.track/internal/tracking/l3detect"
)

// TrajectoryState is the lifecycle state of a trajectory.
type TrajectoryState string

const (
	StateActive TrajectoryState = "active" // matched in the most recent frame
	StateGap    TrajectoryState = "gap"    // open, missed one or more frames
	StateClosed TrajectoryState = "closed" // terminal; never matched again
)

// Trajectory is an ordered-by-frame sequence of candidates sharing one
// particle identity.
type Trajectory struct {
	ID         int
	State      TrajectoryState
	Candidates []l3detect.Candidate

	// Gap counts frames since the last detection (0 while active).
	Gap int

	LastX, LastY float64
	LastFrame    int
}

func newTrajectory(id int, c l3detect.Candidate) *Trajectory {
	return &Trajectory{
		ID:         id,
		State:      StateActive,
		Candidates: []l3detect.Candidate{c},
		LastX:      c.X,
		LastY:      c.Y,
		LastFrame:  c.Frame,
	}
}

// Len returns the number of linked detections.
func (tr *Trajectory) Len() int { return len(tr.Candidates) }

// Open reports whether the trajectory can still be matched.
func (tr *Trajectory) Open() bool { return tr.State != StateClosed }

// Frames returns the frame index of each linked detection.
func (tr *Trajectory) Frames() []int {
	out := make([]int, len(tr.Candidates))
	for i, c := range tr.Candidates {
		out[i] = c.Frame
	}
	return out
}

func (tr *Trajectory) extend(c l3detect.Candidate) {
	tr.Candidates = append(tr.Candidates, c)
	tr.LastX, tr.LastY = c.X, c.Y
	tr.LastFrame = c.Frame
	tr.Gap = 0
	tr.State = StateActive
}

// miss records that the trajectory went undetected in frame and closes it
// once the gap exceeds memory.
func (tr *Trajectory) miss(frame, memory int) {
	tr.Gap = frame - tr.LastFrame
	if tr.Gap > memory {
		tr.State = StateClosed
		return
	}
	tr.State = StateGap
}

func (tr *Trajectory) close() {
	tr.State = StateClosed
}
