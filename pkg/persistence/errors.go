// Package persistence defines the state store contract and standardized error
// types for run persistence.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrRunNotFound indicates no persisted state exists for the given run ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunAlreadyExists indicates persisted state is already present for the run ID.
	ErrRunAlreadyExists = errors.New("run already exists")

	// ErrRunConflict indicates a concurrent mutation was detected by the
	// optimistic version check; the caller should reload and retry.
	ErrRunConflict = errors.New("run state modified concurrently")

	// ErrStateCorrupt indicates the persisted state document could not be decoded.
	ErrStateCorrupt = errors.New("run state corrupt")
)

// RunError wraps run-related persistence errors with operation context.
type RunError struct {
	Op    string // Operation being performed (e.g., "Create", "CompleteStep")
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRunError creates a new run error with context.
func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

// IsRunNotFound checks if an error indicates a run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsRunAlreadyExists checks if an error indicates a run already exists.
func IsRunAlreadyExists(err error) bool {
	return errors.Is(err, ErrRunAlreadyExists)
}

// IsRunConflict checks if an error indicates a concurrent-mutation conflict.
func IsRunConflict(err error) bool {
	return errors.Is(err, ErrRunConflict)
}

// IsStateCorrupt checks if an error indicates an undecodable state document.
func IsStateCorrupt(err error) bool {
	return errors.Is(err, ErrStateCorrupt)
}
