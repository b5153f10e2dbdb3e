package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/confocal.track/internal/tracking"
	"github.com/banshee-data/confocal.track/internal/tracking/l1stack"
	"github.com/banshee-data/confocal.track/internal/tracking/l2frames"
	"github.com/banshee-data/confocal.track/internal/tracking/l3detect"
	"github.com/banshee-data/confocal.track/internal/tracking/l4link"
	"github.com/banshee-data/confocal.track/internal/tracking/l5quality"
)

// Run projects, detects, links and summarises stack under plan.
//
// Shape and config errors are returned before any frame is processed.
// A run in which no frame yields a candidate returns an empty Result,
// not an error. The result depends only on stack and plan: worker count
// and scheduling never change it.
func Run(ctx context.Context, stack *l1stack.Stack, plan tracking.Plan, opts ...Option) (*Result, error) {
	if stack == nil {
		return nil, tracking.NewShapeError(nil, "nil stack")
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	ro := runOptions{observer: logObserver{}, workers: plan.Workers}
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.detector == nil {
		ro.detector = l3detect.NewDetector(l3detect.DetectorConfigFromPlan(plan.Detection))
	}

	runID := uuid.NewString()
	used := UsedParamsFromPlan(plan)
	start := time.Now()
	opsf("run %s: start shape=%v workers=%d diameter=%d minmass=%g search_range=%g memory=%d",
		runID, stack.Shape(), ro.workers, used.Diameter, plan.Detection.MinMass,
		plan.Tracking.SearchRange, plan.Tracking.Memory)

	if stack.Len() == 0 {
		ro.observer.EmptyResult(runID, "stack has no frames")
		return emptyResult(runID, used), nil
	}

	byFrame, err := detectAll(ctx, stack, ro.detector, ro.workers)
	if err != nil {
		opsf("run %s: detection failed: %v", runID, err)
		return nil, err
	}

	total := 0
	for _, cands := range byFrame {
		total += len(cands)
	}
	ro.observer.FramesProcessed(runID, len(byFrame), total)
	if total == 0 {
		ro.observer.EmptyResult(runID, "no candidates detected in any frame")
		return emptyResult(runID, used), nil
	}

	linked, stats, err := linkAll(ctx, byFrame, l4link.LinkerConfigFromPlan(plan.Tracking))
	if err != nil {
		opsf("run %s: linking failed: %v", runID, err)
		return nil, err
	}
	ro.observer.Linked(runID, linked.Len(), stats)

	res := &Result{
		RunID:          runID,
		Trajectories:   linked.Rows(),
		QualityMetrics: l5quality.Summarize(linked.Trajectories, byFrame),
		UsedParams:     used,
	}
	opsf("run %s: done in %v: %d trajectories from %d candidates",
		runID, time.Since(start).Round(time.Millisecond), res.QualityMetrics.NTracks, total)
	return res, nil
}

// detectAll projects and detects every frame on a bounded worker pool.
// Results land in a slice indexed by frame, so order does not depend on
// scheduling.
func detectAll(ctx context.Context, stack *l1stack.Stack, det DetectStage, workers int) ([][]l3detect.Candidate, error) {
	byFrame := make([][]l3detect.Candidate, stack.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t := range byFrame {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			frame, err := l2frames.ProjectFrame(stack, t)
			if err != nil {
				return err
			}
			byFrame[t] = det.Detect(frame)
			tracef("frame %d: %d candidates", t, len(byFrame[t]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return byFrame, nil
}

// linkAll feeds frames to a Linker in order.
func linkAll(ctx context.Context, byFrame [][]l3detect.Candidate, cfg l4link.LinkerConfig) (*l4link.Result, []l4link.FrameStats, error) {
	linker := l4link.NewLinker(cfg)
	stats := make([]l4link.FrameStats, 0, len(byFrame))
	for t, cands := range byFrame {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		s, err := linker.Step(t, cands)
		if err != nil {
			return nil, nil, fmt.Errorf("link frame %d: %w", t, err)
		}
		stats = append(stats, s)
	}
	res, err := linker.Finish()
	if err != nil {
		return nil, nil, fmt.Errorf("finish linking: %w", err)
	}
	return res, stats, nil
}
