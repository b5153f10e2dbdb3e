package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	json5 "github.com/KevinWang15/go-json5"
)

// DefaultConfigPath is the path to the canonical plan defaults file.
const DefaultConfigPath = "config/plan.defaults.json"

// maxFileSize bounds plan files; a plan is a handful of numbers.
const maxFileSize = 1 * 1024 * 1024

// DetectionSection holds the detection_params_initial block.
type DetectionSection struct {
	MaxSigma      *float64 `json:"max_sigma,omitempty"`
	MinMass       *float64 `json:"minmass,omitempty"`
	Percentile    *float64 `json:"percentile,omitempty"`
	Separation    *float64 `json:"separation,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`
}

// TrackingSection holds the tracking_params_initial block.
type TrackingSection struct {
	SearchRange *float64 `json:"search_range,omitempty"`
	Memory      *int     `json:"memory,omitempty"`
}

// PlanConfig is the on-disk form of a detection/tracking plan. Fields are
// pointers so that absent keys can be told apart from zero values: the
// required keys have no default and must be present when the plan is
// turned into a tracking.Plan.
type PlanConfig struct {
	Detection DetectionSection `json:"detection_params_initial"`
	Tracking  TrackingSection  `json:"tracking_params_initial"`

	// Workers bounds the per-frame projection/detection pool.
	Workers *int `json:"workers,omitempty"`
}

// FieldError reports a plan value outside its domain.
type FieldError struct {
	Key    string
	Value  interface{}
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.Key, e.Value, e.Reason)
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPlanConfig returns a PlanConfig with every field unset.
func EmptyPlanConfig() *PlanConfig {
	return &PlanConfig{}
}

// NewPlanConfig returns a PlanConfig with the four required keys set.
func NewPlanConfig(maxSigma, minMass, searchRange float64, memory int) *PlanConfig {
	return &PlanConfig{
		Detection: DetectionSection{
			MaxSigma: ptrFloat64(maxSigma),
			MinMass:  ptrFloat64(minMass),
		},
		Tracking: TrackingSection{
			SearchRange: ptrFloat64(searchRange),
			Memory:      ptrInt(memory),
		},
	}
}

// LoadPlanConfig loads a PlanConfig from a .json or .json5 file. JSON5
// files may carry comments and trailing commas.
func LoadPlanConfig(path string) (*PlanConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".json5" {
		return nil, fmt.Errorf("config file must have .json or .json5 extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParsePlanConfig(data, ext == ".json5")
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParsePlanConfig decodes and validates plan bytes. A value of the wrong
// type is reported as a *FieldError keyed by its dotted path.
func ParsePlanConfig(data []byte, isJSON5 bool) (*PlanConfig, error) {
	if isJSON5 {
		// json5 type errors carry no field path; re-encode the generic
		// document and let encoding/json do the typed decode.
		var doc interface{}
		if err := json5.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		normalised, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		data = normalised
	}

	cfg := EmptyPlanConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) && ute.Field != "" {
			return nil, fmt.Errorf("invalid configuration: %w", &FieldError{
				Key:    ute.Field,
				Value:  ute.Value,
				Reason: "must be of type " + ute.Type.String(),
			})
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the plan defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics when not found;
// intended for tests and examples.
func MustLoadDefaultConfig() *PlanConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPlanConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are present. Missing required keys are
// reported later, when the config becomes a tracking.Plan.
func (c *PlanConfig) Validate() error {
	d := c.Detection
	if d.MaxSigma != nil && *d.MaxSigma <= 0 {
		return &FieldError{Key: "detection_params_initial.max_sigma", Value: *d.MaxSigma, Reason: "must be positive"}
	}
	if d.MinMass != nil && *d.MinMass < 0 {
		return &FieldError{Key: "detection_params_initial.minmass", Value: *d.MinMass, Reason: "must be non-negative"}
	}
	if d.Percentile != nil && (*d.Percentile < 0 || *d.Percentile > 100) {
		return &FieldError{Key: "detection_params_initial.percentile", Value: *d.Percentile, Reason: "must be between 0 and 100"}
	}
	if d.Separation != nil && *d.Separation < 0 {
		return &FieldError{Key: "detection_params_initial.separation", Value: *d.Separation, Reason: "must be non-negative"}
	}
	if d.MaxIterations != nil && *d.MaxIterations < 1 {
		return &FieldError{Key: "detection_params_initial.max_iterations", Value: *d.MaxIterations, Reason: "must be at least 1"}
	}

	tr := c.Tracking
	if tr.SearchRange != nil && *tr.SearchRange <= 0 {
		return &FieldError{Key: "tracking_params_initial.search_range", Value: *tr.SearchRange, Reason: "must be positive"}
	}
	if tr.Memory != nil && *tr.Memory < 0 {
		return &FieldError{Key: "tracking_params_initial.memory", Value: *tr.Memory, Reason: "must be non-negative"}
	}

	if c.Workers != nil && *c.Workers < 0 {
		return &FieldError{Key: "workers", Value: *c.Workers, Reason: "must be non-negative"}
	}
	return nil
}

// Missing returns the dotted names of required keys that are absent.
func (c *PlanConfig) Missing() []string {
	var missing []string
	if c.Detection.MaxSigma == nil {
		missing = append(missing, "detection_params_initial.max_sigma")
	}
	if c.Detection.MinMass == nil {
		missing = append(missing, "detection_params_initial.minmass")
	}
	if c.Tracking.SearchRange == nil {
		missing = append(missing, "tracking_params_initial.search_range")
	}
	if c.Tracking.Memory == nil {
		missing = append(missing, "tracking_params_initial.memory")
	}
	return missing
}

// GetPercentile returns the local-maximum percentile threshold or the default.
func (c *PlanConfig) GetPercentile() float64 {
	if c.Detection.Percentile == nil {
		return 64
	}
	return *c.Detection.Percentile
}

// GetSeparation returns the minimum separation between maxima. Zero means
// "use the detector diameter".
func (c *PlanConfig) GetSeparation() float64 {
	if c.Detection.Separation == nil {
		return 0
	}
	return *c.Detection.Separation
}

// GetMaxIterations returns the centroid refinement iteration cap or the default.
func (c *PlanConfig) GetMaxIterations() int {
	if c.Detection.MaxIterations == nil {
		return 10
	}
	return *c.Detection.MaxIterations
}

// GetWorkers returns the worker pool size, defaulting to GOMAXPROCS.
func (c *PlanConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}
