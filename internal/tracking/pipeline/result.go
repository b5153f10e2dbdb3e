package pipeline

import (
	"encoding/json"

	"github.com/banshee-data/confocal.track/internal/tracking"
	"github.com/banshee-data/confocal.track/internal/tracking/l4link"
	"github.com/banshee-data/confocal.track/internal/tracking/l5quality"
)

// TrajectoryRow is one row of the trajectory table: {x, y, frame, particle}.
type TrajectoryRow = l4link.Row

// UsedParams echoes the parameters a run actually applied.
type UsedParams struct {
	Detection tracking.DetectionParams `json:"detection"`
	Tracking  tracking.TrackingParams  `json:"tracking"`
	Diameter  int                      `json:"diameter"` // derived from max_sigma
}

// UsedParamsFromPlan builds the parameter echo for p.
func UsedParamsFromPlan(p tracking.Plan) UsedParams {
	return UsedParams{
		Detection: p.Detection,
		Tracking:  p.Tracking,
		Diameter:  p.Detection.Diameter(),
	}
}

// Summary returns the parameters as plain nested maps.
func (u UsedParams) Summary() map[string]any {
	return map[string]any{
		"detection": map[string]any{
			"max_sigma":      u.Detection.MaxSigma,
			"minmass":        u.Detection.MinMass,
			"percentile":     u.Detection.Percentile,
			"separation":     u.Detection.Separation,
			"max_iterations": u.Detection.MaxIterations,
		},
		"tracking": map[string]any{
			"search_range": u.Tracking.SearchRange,
			"memory":       u.Tracking.Memory,
		},
		"diameter": u.Diameter,
	}
}

// Result is the output of one Run.
type Result struct {
	RunID          string            `json:"run_id"`
	Trajectories   []TrajectoryRow   `json:"trajectories"`
	QualityMetrics l5quality.Metrics `json:"quality_metrics"`
	UsedParams     UsedParams        `json:"used_params"`
}

func emptyResult(runID string, used UsedParams) *Result {
	return &Result{
		RunID:          runID,
		Trajectories:   []TrajectoryRow{},
		QualityMetrics: l5quality.Empty(),
		UsedParams:     used,
	}
}

// Empty reports whether the run produced no trajectories.
func (r *Result) Empty() bool { return len(r.Trajectories) == 0 }

// Summary returns quality_metrics and used_params as plain nested maps,
// numbers and strings, with no trajectory rows. Histogram keys are
// decimal strings.
func (r *Result) Summary() map[string]any {
	return map[string]any{
		"quality_metrics": r.QualityMetrics.Summary(),
		"used_params":     r.UsedParams.Summary(),
	}
}

// ToJSON serializes the full result. When withRows is false the trajectory
// table is omitted.
func (r *Result) ToJSON(withRows bool) ([]byte, error) {
	if withRows {
		return json.MarshalIndent(r, "", "  ")
	}
	out := r.Summary()
	out["run_id"] = r.RunID
	return json.MarshalIndent(out, "", "  ")
}
