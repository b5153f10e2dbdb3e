package l4link

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/confocal.track/internal/tracking"
	"github.com/banshee-data/confocal.track/internal/tracking/l3detect"
)

// ErrDuplicateSeq is returned by Step when two candidates of one frame
// share a Seq. A candidate is identified by (Frame, Seq).
var ErrDuplicateSeq = errors.New("duplicate candidate seq")

// LinkerConfig holds linking parameters.
type LinkerConfig struct {
	SearchRange float64 // max displacement between linked positions (pixels)
	Memory      int     // max consecutive missed frames before closing
}

// LinkerConfigFromPlan derives linker parameters from a validated plan.
func LinkerConfigFromPlan(p tracking.TrackingParams) LinkerConfig {
	return LinkerConfig{SearchRange: p.SearchRange, Memory: p.Memory}
}

// FrameStats summarises one Step for telemetry.
type FrameStats struct {
	Frame      int
	Candidates int
	Matched    int
	Started    int
	Closed     int
	Subnets    int
}

// Linker assigns candidates to trajectories frame by frame. It is not safe
// for concurrent use: frame t depends on the state left by frame t-1.
type Linker struct {
	cfg          LinkerConfig
	trajectories []*Trajectory
	open         []*Trajectory // ascending ID
	nextID       int
	lastFrame    int
	started      bool
	finished     bool
}

// NewLinker creates a Linker with no trajectories.
func NewLinker(cfg LinkerConfig) *Linker {
	return &Linker{cfg: cfg, lastFrame: -1}
}

// Link runs a Linker over byFrame, where byFrame[t] holds the candidates of
// frame t, and returns the frozen result. Empty input yields an empty
// result, not an error.
func Link(cfg LinkerConfig, byFrame [][]l3detect.Candidate) (*Result, error) {
	total := 0
	for _, cands := range byFrame {
		total += len(cands)
	}
	if total == 0 {
		return emptyResult(), nil
	}

	l := NewLinker(cfg)
	for t, cands := range byFrame {
		if _, err := l.Step(t, cands); err != nil {
			return nil, err
		}
	}
	return l.Finish()
}

// Step links the candidates of one frame. Frames must be supplied in
// strictly increasing order; skipped frame indices count as misses. Seq
// must be unique within the frame.
func (l *Linker) Step(frame int, cands []l3detect.Candidate) (FrameStats, error) {
	stats := FrameStats{Frame: frame, Candidates: len(cands)}
	if l.finished {
		return stats, tracking.NewInvariantError("step after finish")
	}
	if l.started && frame <= l.lastFrame {
		return stats, tracking.NewInvariantError("frame %d supplied after frame %d", frame, l.lastFrame)
	}
	seen := make(map[int]bool, len(cands))
	for _, c := range cands {
		if c.Frame != frame {
			return stats, tracking.NewInvariantError("candidate from frame %d supplied as frame %d", c.Frame, frame)
		}
		if seen[c.Seq] {
			return stats, fmt.Errorf("frame %d seq %d: %w", frame, c.Seq, ErrDuplicateSeq)
		}
		seen[c.Seq] = true
	}
	l.started = true
	l.lastFrame = frame

	// Trajectories whose gap already exceeds memory at this frame (skipped
	// frame indices) are closed before matching.
	stats.Closed += l.expire(frame)

	ordered := append([]l3detect.Candidate(nil), cands...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	assign, subnets := l.assign(ordered)
	stats.Subnets = subnets

	matched := make(map[int]bool, len(assign))
	for ci, c := range ordered {
		tj, ok := assign[ci]
		if !ok {
			continue
		}
		l.open[tj].extend(c)
		matched[tj] = true
		stats.Matched++
	}

	for tj, tr := range l.open {
		if matched[tj] {
			continue
		}
		tr.miss(frame, l.cfg.Memory)
		if tr.State == StateClosed {
			stats.Closed++
		}
	}

	var fresh []*Trajectory
	for ci, c := range ordered {
		if _, ok := assign[ci]; ok {
			continue
		}
		tr := newTrajectory(l.nextID, c)
		l.nextID++
		l.trajectories = append(l.trajectories, tr)
		fresh = append(fresh, tr)
		stats.Started++
	}

	l.compact(fresh)
	tracking.Tracef("link frame=%d candidates=%d matched=%d started=%d closed=%d subnets=%d open=%d",
		frame, stats.Candidates, stats.Matched, stats.Started, stats.Closed, stats.Subnets, len(l.open))
	return stats, nil
}

// Finish closes every open trajectory, verifies the result and freezes the
// Linker.
func (l *Linker) Finish() (*Result, error) {
	if l.finished {
		return nil, tracking.NewInvariantError("finish called twice")
	}
	l.finished = true
	for _, tr := range l.open {
		tr.close()
	}
	l.open = nil

	res := &Result{
		Trajectories: l.trajectories,
		Assignment:   make(map[l3detect.Key]int),
	}
	if err := res.verify(); err != nil {
		tracking.Opsf("link result rejected: %v", err)
		return nil, err
	}
	tracking.Diagf("linked %d candidates into %d trajectories", len(res.Assignment), len(res.Trajectories))
	return res, nil
}

// OpenCount returns the number of trajectories still eligible for matching.
func (l *Linker) OpenCount() int { return len(l.open) }

func (l *Linker) expire(frame int) int {
	closed := 0
	for _, tr := range l.open {
		if frame-tr.LastFrame-1 > l.cfg.Memory {
			tr.Gap = frame - tr.LastFrame - 1
			tr.close()
			closed++
		}
	}
	if closed > 0 {
		l.compact(nil)
	}
	return closed
}

// compact drops closed trajectories from the open set and appends fresh
// ones. Fresh IDs are always larger, so ascending ID order is kept.
func (l *Linker) compact(fresh []*Trajectory) {
	kept := l.open[:0]
	for _, tr := range l.open {
		if tr.Open() {
			kept = append(kept, tr)
		}
	}
	l.open = append(kept, fresh...)
}

// assign gates candidate↔trajectory pairs through a spatial index, splits
// the gated bipartite graph into independent sub-networks and solves each
// one for minimum total squared displacement. It returns candidate index →
// open-trajectory index and the number of sub-networks solved.
func (l *Linker) assign(cands []l3detect.Candidate) (map[int]int, int) {
	out := make(map[int]int)
	if len(cands) == 0 || len(l.open) == 0 {
		return out, 0
	}

	xs := make([]float64, len(l.open))
	ys := make([]float64, len(l.open))
	for i, tr := range l.open {
		xs[i], ys[i] = tr.LastX, tr.LastY
	}
	index := NewSpatialIndex(l.cfg.SearchRange)
	index.Build(xs, ys)

	// Nodes: candidates 0..nc-1, trajectories nc..nc+nt-1.
	nc := len(cands)
	uf := newUnionFind(nc + len(l.open))
	gated := make([][]int, nc)
	for ci, c := range cands {
		gated[ci] = index.RegionQuery(c.X, c.Y, l.cfg.SearchRange)
		for _, tj := range gated[ci] {
			uf.union(ci, nc+tj)
		}
	}

	// Group by component root, rows and columns in ascending order.
	type subnet struct{ rows, cols []int }
	byRoot := make(map[int]*subnet)
	var roots []int
	for ci := range cands {
		if len(gated[ci]) == 0 {
			continue
		}
		r := uf.find(ci)
		sn, ok := byRoot[r]
		if !ok {
			sn = &subnet{}
			byRoot[r] = sn
			roots = append(roots, r)
		}
		sn.rows = append(sn.rows, ci)
	}
	for tj := range l.open {
		if sn, ok := byRoot[uf.find(nc+tj)]; ok {
			sn.cols = append(sn.cols, tj)
		}
	}

	for _, r := range roots {
		sn := byRoot[r]
		colPos := make(map[int]int, len(sn.cols))
		for k, tj := range sn.cols {
			colPos[tj] = k
		}
		cost := make([][]float64, len(sn.rows))
		for i, ci := range sn.rows {
			cost[i] = make([]float64, len(sn.cols))
			for k := range cost[i] {
				cost[i][k] = Forbidden
			}
			for _, tj := range gated[ci] {
				dx, dy := cands[ci].X-xs[tj], cands[ci].Y-ys[tj]
				cost[i][colPos[tj]] = dx*dx + dy*dy
			}
		}
		for i, k := range solveSubnet(cost) {
			if k >= 0 {
				out[sn.rows[i]] = sn.cols[k]
			}
		}
	}
	return out, len(roots)
}

// solveSubnet assigns rows to columns. Ties between equal-cost optima go
// to the earliest candidate, then to the lowest trajectory ID. Single-row
// and single-column sub-networks take the strict minimum; larger ones use
// lexicographicAssign.
func solveSubnet(cost [][]float64) []int {
	n, m := len(cost), len(cost[0])
	if n == 1 {
		best := -1
		for k := 0; k < m; k++ {
			if cost[0][k] == Forbidden {
				continue
			}
			if best < 0 || cost[0][k] < cost[0][best] {
				best = k
			}
		}
		return []int{best}
	}
	if m == 1 {
		out := make([]int, n)
		best := -1
		for i := 0; i < n; i++ {
			out[i] = -1
			if cost[i][0] == Forbidden {
				continue
			}
			if best < 0 || cost[i][0] < cost[best][0] {
				best = i
			}
		}
		if best >= 0 {
			out[best] = 0
		}
		return out
	}
	return lexicographicAssign(cost)
}

type unionFind struct{ parent []int }

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union keeps the smaller index as root.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

func (s FrameStats) String() string {
	return fmt.Sprintf("frame %d: %d candidates, %d matched, %d started, %d closed",
		s.Frame, s.Candidates, s.Matched, s.Started, s.Closed)
}
