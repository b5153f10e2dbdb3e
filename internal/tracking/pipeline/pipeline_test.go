package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/confocal.track/internal/testutil"
	"github.com/banshee-data/confocal.track/internal/tracking"
	"github.com/banshee-data/confocal.track/internal/tracking/l1stack"
	"github.com/banshee-data/confocal.track/internal/tracking/l2frames"
	"github.com/banshee-data/confocal.track/internal/tracking/l3detect"
	"github.com/banshee-data/confocal.track/internal/tracking/l4link"
)

func testPlan(t *testing.T, searchRange float64, memory int) tracking.Plan {
	t.Helper()
	p, err := tracking.NewPlan(1.5, 100, searchRange, memory)
	require.NoError(t, err)
	return p
}

func blob(x, y float64) testutil.Blob {
	return testutil.Blob{X: x, Y: y, Z: 1, Sigma: 1.5, Amplitude: 500}
}

type stubDetector struct {
	calls atomic.Int64
	fn    func(l2frames.Frame) []l3detect.Candidate
}

func (s *stubDetector) Detect(f l2frames.Frame) []l3detect.Candidate {
	s.calls.Add(1)
	if s.fn == nil {
		return nil
	}
	return s.fn(f)
}

type recordingObserver struct {
	frames, detections int
	empty              []string
	trajectories       int
	linkedFrames       int
}

func (r *recordingObserver) FramesProcessed(_ string, frames, detections int) {
	r.frames, r.detections = frames, detections
}

func (r *recordingObserver) EmptyResult(_ string, reason string) {
	r.empty = append(r.empty, reason)
}

func (r *recordingObserver) Linked(_ string, trajectories int, frames []l4link.FrameStats) {
	r.trajectories = trajectories
	r.linkedFrames = len(frames)
}

func TestRun_StationaryBlob(t *testing.T) {
	stack := testutil.NewStackBuilder(5, 3, 32, 32).Blob(blob(15.3, 16.2)).MustBuild()

	res, err := Run(context.Background(), stack, testPlan(t, 5, 3))
	require.NoError(t, err)

	require.Len(t, res.Trajectories, 5)
	for i, row := range res.Trajectories {
		assert.Equal(t, i, row.Frame)
		assert.Equal(t, 0, row.Particle)
		assert.InDelta(t, 15.3, row.X, 0.5)
		assert.InDelta(t, 16.2, row.Y, 0.5)
	}
	m := res.QualityMetrics
	assert.Equal(t, 1, m.NTracks)
	assert.Equal(t, map[int]int{5: 1}, m.TrackLengthHist)
	assert.Equal(t, map[int]int{0: 1, 1: 1, 2: 1, 3: 1, 4: 1}, m.DetectionsPerFrame)
	assert.NotEmpty(t, res.RunID)
}

func TestRun_GapAndMemory(t *testing.T) {
	stack := testutil.NewStackBuilder(5, 3, 32, 32).BlobAt(blob(16, 16), 0, 1, 4).MustBuild()

	t.Run("memory bridges gap", func(t *testing.T) {
		res, err := Run(context.Background(), stack, testPlan(t, 5, 3))
		require.NoError(t, err)
		assert.Equal(t, 1, res.QualityMetrics.NTracks)
		assert.Equal(t, map[int]int{3: 1}, res.QualityMetrics.TrackLengthHist)
	})

	t.Run("gap exceeds memory", func(t *testing.T) {
		res, err := Run(context.Background(), stack, testPlan(t, 5, 1))
		require.NoError(t, err)
		assert.Equal(t, 2, res.QualityMetrics.NTracks)
		assert.Equal(t, map[int]int{2: 1, 1: 1}, res.QualityMetrics.TrackLengthHist)
	})
}

func TestRun_DisplacementBeyondSearchRange(t *testing.T) {
	stack := testutil.NewStackBuilder(2, 3, 32, 32).
		BlobAt(blob(8, 8), 0).
		BlobAt(blob(24, 24), 1).
		MustBuild()

	res, err := Run(context.Background(), stack, testPlan(t, 5, 3))
	require.NoError(t, err)
	require.Len(t, res.Trajectories, 2)
	assert.NotEqual(t, res.Trajectories[0].Particle, res.Trajectories[1].Particle)
	assert.Equal(t, map[int]int{1: 2}, res.QualityMetrics.TrackLengthHist)
}

func TestRun_NoDetections(t *testing.T) {
	for name, stack := range map[string]*l1stack.Stack{
		"blank frames": testutil.NewStackBuilder(4, 2, 16, 16).MustBuild(),
		"no frames":    testutil.NewStackBuilder(0, 2, 16, 16).MustBuild(),
		"faint only":   testutil.NewStackBuilder(3, 2, 24, 24).Noise(5, 3).MustBuild(),
	} {
		t.Run(name, func(t *testing.T) {
			obs := &recordingObserver{}
			plan := testPlan(t, 5, 3)
			res, err := Run(context.Background(), stack, plan, WithObserver(obs))
			require.NoError(t, err)

			assert.NotNil(t, res.Trajectories)
			assert.Empty(t, res.Trajectories)
			assert.True(t, res.Empty())
			assert.Equal(t, 0, res.QualityMetrics.NTracks)
			assert.Empty(t, res.QualityMetrics.TrackLengthHist)
			assert.Empty(t, res.QualityMetrics.DetectionsPerFrame)
			assert.Equal(t, UsedParamsFromPlan(plan), res.UsedParams)
			assert.Len(t, obs.empty, 1)
		})
	}
}

func TestRun_HistogramAccountsForEveryRow(t *testing.T) {
	sb := testutil.NewStackBuilder(8, 3, 64, 64).Noise(5, 42)
	for f := 0; f < 8; f++ {
		d := float64(f)
		sb.BlobAt(blob(10+d, 12), f)
		sb.BlobAt(blob(50-d, 20+0.5*d), f)
		sb.BlobAt(blob(30, 45+0.8*d), f)
		if f != 3 {
			sb.BlobAt(blob(12, 50-d), f)
		}
	}
	res, err := Run(context.Background(), sb.MustBuild(), testPlan(t, 4, 2))
	require.NoError(t, err)

	m := res.QualityMetrics
	tracks, rows := 0, 0
	for length, count := range m.TrackLengthHist {
		tracks += count
		rows += length * count
	}
	assert.Equal(t, m.NTracks, tracks)
	assert.Equal(t, len(res.Trajectories), rows)
	assert.Equal(t, m.TotalDetections, len(res.Trajectories))
	assert.Equal(t, 31, m.TotalDetections)
	assert.Equal(t, 4, m.NTracks)
}

func TestRun_Deterministic(t *testing.T) {
	sb := testutil.NewStackBuilder(6, 2, 48, 48).Noise(4, 7)
	for f := 0; f < 6; f++ {
		d := float64(f)
		// Two particles converge, cross and separate.
		sb.BlobAt(blob(14+2*d, 24), f)
		sb.BlobAt(blob(34-2*d, 24), f)
	}
	stack := sb.MustBuild()
	plan := testPlan(t, 6, 1)

	first, err := Run(context.Background(), stack, plan, WithWorkers(1))
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first.Trajectories)
	require.NoError(t, err)

	for _, workers := range []int{1, 3, 8} {
		again, err := Run(context.Background(), stack, plan, WithWorkers(workers))
		require.NoError(t, err)
		if diff := cmp.Diff(first.Trajectories, again.Trajectories); diff != "" {
			t.Fatalf("workers=%d trajectories differ (-first +again):\n%s", workers, diff)
		}
		if diff := cmp.Diff(first.QualityMetrics, again.QualityMetrics); diff != "" {
			t.Fatalf("workers=%d metrics differ (-first +again):\n%s", workers, diff)
		}
		againJSON, err := json.Marshal(again.Trajectories)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(firstJSON, againJSON))
	}
}

func TestRun_DetectionsIndependentOfLinking(t *testing.T) {
	sb := testutil.NewStackBuilder(4, 2, 40, 40)
	for f := 0; f < 4; f++ {
		sb.BlobAt(blob(10+3*float64(f), 20), f)
	}
	stack := sb.MustBuild()

	tight, err := Run(context.Background(), stack, testPlan(t, 1, 0))
	require.NoError(t, err)
	loose, err := Run(context.Background(), stack, testPlan(t, 8, 3))
	require.NoError(t, err)

	assert.Equal(t, 4, tight.QualityMetrics.NTracks)
	assert.Equal(t, 1, loose.QualityMetrics.NTracks)
	assert.Equal(t, tight.QualityMetrics.DetectionsPerFrame, loose.QualityMetrics.DetectionsPerFrame)
}

func TestRun_ShapeError(t *testing.T) {
	_, err := Run(context.Background(), nil, testPlan(t, 5, 3))
	var shapeErr *tracking.ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestRun_ConfigErrorBeforeAnyFrame(t *testing.T) {
	stack := testutil.NewStackBuilder(3, 1, 16, 16).Blob(blob(8, 8)).MustBuild()
	plan := testPlan(t, 5, 3)
	plan.Tracking.SearchRange = -1

	det := &stubDetector{}
	_, err := Run(context.Background(), stack, plan, WithDetector(det))
	var cfgErr *tracking.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "tracking_params_initial.search_range", cfgErr.Key)
	assert.Equal(t, int64(0), det.calls.Load())
}

func TestRun_InvariantErrorIsFatal(t *testing.T) {
	stack := testutil.NewStackBuilder(2, 1, 16, 16).MustBuild()
	det := &stubDetector{fn: func(f l2frames.Frame) []l3detect.Candidate {
		return []l3detect.Candidate{{Frame: f.Index + 1, X: 5, Y: 5}}
	}}

	res, err := Run(context.Background(), stack, testPlan(t, 5, 3), WithDetector(det))
	assert.Nil(t, res)
	var inv *tracking.InternalInvariantError
	assert.True(t, errors.As(err, &inv))
}

func TestRun_DuplicateSeqFromDetector(t *testing.T) {
	stack := testutil.NewStackBuilder(2, 1, 64, 64).MustBuild()
	det := &stubDetector{fn: func(f l2frames.Frame) []l3detect.Candidate {
		return []l3detect.Candidate{
			{Frame: f.Index, Seq: 0, X: 5, Y: 5},
			{Frame: f.Index, Seq: 0, X: 50, Y: 50},
		}
	}}

	res, err := Run(context.Background(), stack, testPlan(t, 5, 1), WithDetector(det))
	assert.Nil(t, res)
	require.ErrorIs(t, err, l4link.ErrDuplicateSeq)
	var inv *tracking.InternalInvariantError
	assert.False(t, errors.As(err, &inv))
}

func TestRun_UsedDiameter(t *testing.T) {
	stack := testutil.NewStackBuilder(2, 1, 16, 16).MustBuild()
	for maxSigma, want := range map[float64]int{1.3: 3, 1.5: 5, 2.3: 5} {
		plan, err := tracking.NewPlan(maxSigma, 100, 5, 1)
		require.NoError(t, err)
		res, err := Run(context.Background(), stack, plan)
		require.NoError(t, err)
		assert.Equal(t, want, res.UsedParams.Diameter, "max_sigma=%v", maxSigma)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	stack := testutil.NewStackBuilder(4, 1, 16, 16).Blob(blob(8, 8)).MustBuild()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, stack, testPlan(t, 5, 3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_StubDetectorOnEveryFrame(t *testing.T) {
	stack := testutil.NewStackBuilder(5, 1, 16, 16).MustBuild()
	det := &stubDetector{fn: func(f l2frames.Frame) []l3detect.Candidate {
		return []l3detect.Candidate{{Frame: f.Index, X: 5 + float64(f.Index), Y: 5}}
	}}
	obs := &recordingObserver{}

	res, err := Run(context.Background(), stack, testPlan(t, 2, 0), WithDetector(det), WithObserver(obs), WithWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, int64(5), det.calls.Load())
	assert.Equal(t, 5, obs.frames)
	assert.Equal(t, 5, obs.detections)
	assert.Equal(t, 1, obs.trajectories)
	assert.Equal(t, 5, obs.linkedFrames)
	assert.Empty(t, obs.empty)
	assert.Equal(t, map[int]int{5: 1}, res.QualityMetrics.TrackLengthHist)
}

func TestWithObserver_NilKeepsDefault(t *testing.T) {
	var obs *recordingObserver
	ro := runOptions{observer: logObserver{}}
	WithObserver(obs)(&ro)
	assert.Equal(t, logObserver{}, ro.observer)

	WithWorkers(0)(&ro)
	assert.Equal(t, 0, ro.workers)
	WithWorkers(3)(&ro)
	assert.Equal(t, 3, ro.workers)
}

func TestRun_LogStreams(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	t.Cleanup(func() { SetLogWriters(nil, nil, nil) })

	stack := testutil.NewStackBuilder(2, 1, 24, 24).Blob(blob(12, 12)).MustBuild()
	res, err := Run(context.Background(), stack, testPlan(t, 5, 3))
	require.NoError(t, err)

	assert.Contains(t, ops.String(), "[pipeline] ")
	assert.Contains(t, ops.String(), "run "+res.RunID+": start")
	assert.Contains(t, diag.String(), "linked 1 trajectories over 2 frames")
	assert.Contains(t, trace.String(), "frame 1: 1 candidates")
}
