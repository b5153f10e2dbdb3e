package l4link

import (
	"sort"

	"github.com/banshee-data/confocal.track/internal/tracking"
	"github.com/banshee-data/confocal.track/internal/tracking/l3detect"
)

// Row is one line of the trajectory table.
type Row struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Frame    int     `json:"frame"`
	Particle int     `json:"particle"`
}

// Result is the frozen output of a linking run.
type Result struct {
	// Trajectories in ascending ID order, all closed.
	Trajectories []*Trajectory
	// Assignment maps each linked candidate to its trajectory ID.
	Assignment map[l3detect.Key]int
}

func emptyResult() *Result {
	return &Result{Assignment: map[l3detect.Key]int{}}
}

// Len returns the number of trajectories.
func (r *Result) Len() int { return len(r.Trajectories) }

// Rows returns the trajectory table ordered by frame, then by candidate
// creation order within the frame.
func (r *Result) Rows() []Row {
	type keyed struct {
		key l3detect.Key
		row Row
	}
	var all []keyed
	for _, tr := range r.Trajectories {
		for _, c := range tr.Candidates {
			all = append(all, keyed{c.Key(), Row{X: c.X, Y: c.Y, Frame: c.Frame, Particle: tr.ID}})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].key.Frame != all[j].key.Frame {
			return all[i].key.Frame < all[j].key.Frame
		}
		return all[i].key.Seq < all[j].key.Seq
	})
	rows := make([]Row, len(all))
	for i, k := range all {
		rows[i] = k.row
	}
	return rows
}

// verify fills Assignment and checks that no candidate is linked twice
// and every trajectory's frames strictly increase.
func (r *Result) verify() error {
	for i, tr := range r.Trajectories {
		if i > 0 && tr.ID <= r.Trajectories[i-1].ID {
			return tracking.NewInvariantError("trajectory ids out of order: %d after %d", tr.ID, r.Trajectories[i-1].ID)
		}
		if tr.State != StateClosed {
			return tracking.NewInvariantError("trajectory %d left in state %s", tr.ID, tr.State)
		}
		if len(tr.Candidates) == 0 {
			return tracking.NewInvariantError("trajectory %d has no candidates", tr.ID)
		}
		for k, c := range tr.Candidates {
			if k > 0 && c.Frame <= tr.Candidates[k-1].Frame {
				return tracking.NewInvariantError("trajectory %d frames not strictly increasing (%d after %d)",
					tr.ID, c.Frame, tr.Candidates[k-1].Frame)
			}
			if prev, dup := r.Assignment[c.Key()]; dup {
				return tracking.NewInvariantError("candidate frame=%d seq=%d linked to trajectories %d and %d",
					c.Frame, c.Seq, prev, tr.ID)
			}
			r.Assignment[c.Key()] = tr.ID
		}
	}
	return nil
}
