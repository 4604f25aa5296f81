package sla

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches any ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("sla: invalid calendar configuration")
	// ErrIterationBoundExceeded matches any IterationBoundError via errors.Is.
	ErrIterationBoundExceeded = errors.New("sla: iteration bound exceeded")
)

// ConfigurationError reports a structurally invalid calendar configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("sla: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// IterationBoundError reports that a day-stepping loop hit its cap.
type IterationBoundError struct {
	Op    string
	Limit int
}

func (e *IterationBoundError) Error() string {
	return fmt.Sprintf("sla: %s exceeded %d iterations", e.Op, e.Limit)
}

func (e *IterationBoundError) Is(target error) bool {
	return target == ErrIterationBoundExceeded
}

func configError(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
