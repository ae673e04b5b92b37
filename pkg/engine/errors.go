package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStepUnknown indicates the step name is not in the catalog.
	ErrStepUnknown = errors.New("step not registered")

	// ErrWorkflowUnknown indicates the workflow name is not in the catalog.
	ErrWorkflowUnknown = errors.New("workflow not registered")

	// ErrRunFinished indicates the run reached a terminal status and accepts
	// no further steps.
	ErrRunFinished = errors.New("run already finished")

	// ErrSourceMissing indicates the caller-supplied log path does not exist.
	ErrSourceMissing = errors.New("log path does not exist")
)

// ValidationError reports declared inputs that could not be resolved from
// global data, run parameters, or invocation arguments. It is returned before
// any state transition.
type ValidationError struct {
	StepName string
	Missing  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %s missing inputs: %s", e.StepName, strings.Join(e.Missing, ", "))
}

// IsValidationError checks whether an error is an input-validation rejection.
func IsValidationError(err error) bool {
	var ve *ValidationError

	return errors.As(err, &ve)
}

// ParamError reports run parameters that failed schema validation at creation.
type ParamError struct {
	WorkflowType string
	Problems     []string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameters for workflow %s: %s", e.WorkflowType, strings.Join(e.Problems, "; "))
}

// IsParamError checks whether an error is a parameter-schema rejection.
func IsParamError(err error) bool {
	var pe *ParamError

	return errors.As(err, &pe)
}
