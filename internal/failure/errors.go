// Package failure holds the error types shared by the unmixing engine.
//
// Shape and configuration errors are raised before any parallel work starts.
// WorkerFailure carries the row range of the block that failed so the caller
// can re-run only that extent.
package failure

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is wrapped by a ConfigurationError when a zero-value
// component is used before being set up.
var ErrNotConfigured = errors.New("not configured")

// ShapeMismatchError is returned when two rasters that must share a pixel
// grid have different dimensions.
type ShapeMismatchError struct {
	Name       string
	Rows, Cols int
	WantName   string
	WantRows   int
	WantCols   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s is %dx%d but %s is %dx%d", e.Name, e.Rows, e.Cols, e.WantName, e.WantRows, e.WantCols)
}

// ConfigurationError reports an invalid or missing run parameter.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration %q: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid configuration %q: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError is a shorthand for &ConfigurationError{Field, Reason}.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// WorkerFailure is returned when a row-block could not be processed.
// StartRow is inclusive, EndRow exclusive.
type WorkerFailure struct {
	StartRow int
	EndRow   int
	Err      error
}

func (e *WorkerFailure) Error() string {
	return fmt.Sprintf("worker failed on rows [%d, %d): %v", e.StartRow, e.EndRow, e.Err)
}

func (e *WorkerFailure) Unwrap() error { return e.Err }

// Kind classifies an error for user-facing reports.
func Kind(err error) string {
	var (
		shape  *ShapeMismatchError
		config *ConfigurationError
		worker *WorkerFailure
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &shape):
		return "shape mismatch"
	case errors.As(err, &config):
		return "configuration"
	case errors.As(err, &worker):
		return "worker failure"
	default:
		return "internal"
	}
}
