package models

import "time"

// RunStatus represents the lifecycle state of one workflow run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further steps will be accepted for this status.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// StepStatus represents the lifecycle state of one step within a run.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusFailed    StepStatus = "failed"
)

// StepResult records one step's execution inside a run. It is created when the
// step starts and mutated in place as the step completes or fails; a stale
// running record left behind by a crash is overwritten by the next start.
type StepResult struct {
	StepName     string           `json:"step_name"`
	Status       StepStatus       `json:"status"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	OutputData   map[string]Value `json:"output_data"`
	FragmentPath string           `json:"fragment_path,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// RunContext is the unit of persisted state for one workflow run. All mutation
// goes through the state store; the cursor is the single source of truth for
// which step runs next.
type RunContext struct {
	RunID        string    `json:"run_id"`
	WorkflowType string    `json:"workflow_type"`
	Status       RunStatus `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Version increments on every persisted mutation; the store uses it for
	// optimistic concurrency across processes.
	Version int64 `json:"version"`

	// Params are the caller-supplied arguments, immutable after creation.
	Params map[string]Value `json:"params"`

	// Steps is the ordered step-name list frozen at creation time.
	Steps            []string `json:"steps"`
	CurrentStepIndex int      `json:"current_step_index"`

	StepResults map[string]*StepResult `json:"step_results"`

	// GlobalData accumulates step outputs; keys are only ever overwritten,
	// never removed.
	GlobalData map[string]Value `json:"global_data"`

	// HTMLFragments lists fragment file paths in production order.
	HTMLFragments []string `json:"html_fragments"`

	// OutputPath is set only by the terminal step.
	OutputPath string `json:"output_path,omitempty"`
}

// NewRunContext builds a fresh running context with empty collections so the
// serialized form round-trips field-for-field.
func NewRunContext(runID, workflowType string, params map[string]Value, steps []string, now time.Time) *RunContext {
	if params == nil {
		params = map[string]Value{}
	}

	frozen := make([]string, len(steps))
	copy(frozen, steps)

	return &RunContext{
		RunID:            runID,
		WorkflowType:     workflowType,
		Status:           RunStatusRunning,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          1,
		Params:           params,
		Steps:            frozen,
		CurrentStepIndex: 0,
		StepResults:      map[string]*StepResult{},
		GlobalData:       map[string]Value{},
		HTMLFragments:    []string{},
	}
}

// CurrentStep returns the name at the cursor, or "" when the run is complete.
func (rc *RunContext) CurrentStep() string {
	if rc.CurrentStepIndex < 0 || rc.CurrentStepIndex >= len(rc.Steps) {
		return ""
	}

	return rc.Steps[rc.CurrentStepIndex]
}

// RemainingSteps returns the step names at and after the cursor.
func (rc *RunContext) RemainingSteps() []string {
	if rc.CurrentStepIndex >= len(rc.Steps) {
		return []string{}
	}

	remaining := make([]string, len(rc.Steps)-rc.CurrentStepIndex)
	copy(remaining, rc.Steps[rc.CurrentStepIndex:])

	return remaining
}

// Lookup resolves a key from global data first, then params.
func (rc *RunContext) Lookup(key string) (Value, bool) {
	if v, ok := rc.GlobalData[key]; ok {
		return v, true
	}

	if v, ok := rc.Params[key]; ok {
		return v, true
	}

	return Value{}, false
}
