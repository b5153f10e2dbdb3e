package tracking

import (
	"fmt"
)

// ShapeError reports an input stack that is not a four-axis
// (time, depth, height, width) array of finite, non-negative intensities.
type ShapeError struct {
	Shape  []int
	Reason string
}

func (e *ShapeError) Error() string {
	if len(e.Shape) == 0 {
		return fmt.Sprintf("shape error: %s", e.Reason)
	}
	return fmt.Sprintf("shape error: %s (shape %v)", e.Reason, e.Shape)
}

// ConfigError reports a plan key that is missing or outside its domain.
type ConfigError struct {
	Key    string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("config error: %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s=%v: %s", e.Key, e.Value, e.Reason)
}

// InternalInvariantError reports a broken pipeline invariant, e.g. a
// candidate linked into two trajectories. It is never recovered from.
type InternalInvariantError struct {
	Reason string
}

func (e *InternalInvariantError) Error() string {
	return "internal invariant violated: " + e.Reason
}

// NewShapeError builds a ShapeError with a formatted reason.
func NewShapeError(shape []int, format string, args ...interface{}) *ShapeError {
	var s []int
	if shape != nil {
		s = append([]int(nil), shape...)
	}
	return &ShapeError{Shape: s, Reason: fmt.Sprintf(format, args...)}
}

// NewInvariantError builds an InternalInvariantError with a formatted reason.
func NewInvariantError(format string, args ...interface{}) *InternalInvariantError {
	return &InternalInvariantError{Reason: fmt.Sprintf(format, args...)}
}
