package tracking

import (
	"errors"
	"math"

	"github.com/banshee-data/confocal.track/internal/config"
)

// DetectionParams configures per-frame particle localisation.
type DetectionParams struct {
	MaxSigma      float64 `json:"max_sigma"`      // expected particle radius scale (pixels)
	MinMass       float64 `json:"minmass"`        // minimum integrated intensity
	Percentile    float64 `json:"percentile"`     // maxima must exceed this percentile of the frame
	Separation    float64 `json:"separation"`     // minimum distance between maxima; 0 means diameter
	MaxIterations int     `json:"max_iterations"` // centroid refinement cap
}

// TrackingParams configures frame-to-frame linking.
type TrackingParams struct {
	SearchRange float64 `json:"search_range"` // max displacement between linked positions (pixels)
	Memory      int     `json:"memory"`       // max consecutive missed frames before closing
}

// Plan is the immutable, validated run configuration. Build it with
// NewPlan or PlanFromConfig; both validate.
type Plan struct {
	Detection DetectionParams
	Tracking  TrackingParams
	Workers   int
}

// NewPlan builds a Plan from the four required parameters, filling the
// optional detection parameters with their defaults.
func NewPlan(maxSigma, minMass, searchRange float64, memory int) (Plan, error) {
	return PlanFromConfig(config.NewPlanConfig(maxSigma, minMass, searchRange, memory))
}

// PlanFromConfig converts a loaded PlanConfig into a Plan. Missing
// required keys and out-of-domain values are reported as *ConfigError.
func PlanFromConfig(cfg *config.PlanConfig) (Plan, error) {
	if cfg == nil {
		return Plan{}, &ConfigError{Key: "plan", Reason: "missing"}
	}
	if missing := cfg.Missing(); len(missing) > 0 {
		return Plan{}, &ConfigError{Key: missing[0], Reason: "required key missing"}
	}
	p := Plan{
		Detection: DetectionParams{
			MaxSigma:      *cfg.Detection.MaxSigma,
			MinMass:       *cfg.Detection.MinMass,
			Percentile:    cfg.GetPercentile(),
			Separation:    cfg.GetSeparation(),
			MaxIterations: cfg.GetMaxIterations(),
		},
		Tracking: TrackingParams{
			SearchRange: *cfg.Tracking.SearchRange,
			Memory:      *cfg.Tracking.Memory,
		},
		Workers: cfg.GetWorkers(),
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// LoadPlan reads a plan file and converts it into a Plan. Out-of-domain
// and missing keys are reported as *ConfigError.
func LoadPlan(path string) (Plan, error) {
	cfg, err := config.LoadPlanConfig(path)
	if err != nil {
		var fe *config.FieldError
		if errors.As(err, &fe) {
			return Plan{}, &ConfigError{Key: fe.Key, Value: fe.Value, Reason: fe.Reason}
		}
		return Plan{}, err
	}
	return PlanFromConfig(cfg)
}

// Validate checks every parameter against its domain.
func (p Plan) Validate() error {
	d := p.Detection
	if !finite(d.MaxSigma) || d.MaxSigma <= 0 {
		return &ConfigError{Key: "detection_params_initial.max_sigma", Value: d.MaxSigma, Reason: "must be a positive number"}
	}
	if !finite(d.MinMass) || d.MinMass < 0 {
		return &ConfigError{Key: "detection_params_initial.minmass", Value: d.MinMass, Reason: "must be a non-negative number"}
	}
	if !finite(d.Percentile) || d.Percentile < 0 || d.Percentile > 100 {
		return &ConfigError{Key: "detection_params_initial.percentile", Value: d.Percentile, Reason: "must be in [0, 100]"}
	}
	if !finite(d.Separation) || d.Separation < 0 {
		return &ConfigError{Key: "detection_params_initial.separation", Value: d.Separation, Reason: "must be non-negative"}
	}
	if d.MaxIterations < 1 {
		return &ConfigError{Key: "detection_params_initial.max_iterations", Value: d.MaxIterations, Reason: "must be at least 1"}
	}
	t := p.Tracking
	if !finite(t.SearchRange) || t.SearchRange <= 0 {
		return &ConfigError{Key: "tracking_params_initial.search_range", Value: t.SearchRange, Reason: "must be a positive number"}
	}
	if t.Memory < 0 {
		return &ConfigError{Key: "tracking_params_initial.memory", Value: t.Memory, Reason: "must be a non-negative integer"}
	}
	if p.Workers < 1 {
		return &ConfigError{Key: "workers", Value: p.Workers, Reason: "must be at least 1"}
	}
	return nil
}

// Diameter is the detector neighbourhood size: 2*max_sigma+1 rounded to
// the nearest odd integer, halves rounding up, never below 3.
func (d DetectionParams) Diameter() int {
	v := 2*d.MaxSigma + 1
	n := 2*int(math.Round((v-1)/2)) + 1
	if n < 3 {
		n = 3
	}
	return n
}

// EffectiveSeparation returns Separation, or the diameter when unset.
func (d DetectionParams) EffectiveSeparation() float64 {
	if d.Separation > 0 {
		return d.Separation
	}
	return float64(d.Diameter())
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
