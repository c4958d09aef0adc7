// Package ids generates identifiers for runs and steps.
package ids

import "github.com/google/uuid"

// NewRunID returns a fresh, globally unique run identifier.
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewStepID returns a fresh, globally unique step identifier.
func NewStepID() string {
	return "step_" + uuid.New().String()
}
