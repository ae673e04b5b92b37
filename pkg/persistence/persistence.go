package persistence

import (
	"context"
	"strconv"
	"time"

	"github.com/HarrySunV9x/hana-perf/pkg/models"
)

// RunSummary is the listing view over persisted runs.
type RunSummary struct {
	RunID        string           `json:"run_id"`
	WorkflowType string           `json:"workflow_type"`
	Status       models.RunStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

// NextStepInfo is the derived "what happens next" view over one run.
type NextStepInfo struct {
	Completed bool `json:"completed"`
	Failed    bool `json:"failed"`
	Cancelled bool `json:"cancelled"`

	// OutputPath is set when the run completed and produced a document.
	OutputPath string `json:"output_path,omitempty"`

	// FailedStep names the step the run is parked at after a failure.
	FailedStep  string                        `json:"failed_step,omitempty"`
	StepResults map[string]*models.StepResult `json:"step_results,omitempty"`

	CurrentStep    string   `json:"current_step,omitempty"`
	Progress       string   `json:"progress,omitempty"`
	RemainingSteps []string `json:"remaining_steps,omitempty"`
}

// StateStore owns the persisted state of workflow runs. Each mutating method
// performs load, mutate, save as one atomic unit; callers must not assume
// atomicity across two separate calls. Implementations must guard against
// concurrent mutation of the same run, either with a per-run lock or an
// optimistic version check.
type StateStore interface {
	// Exists reports whether persisted state is present for the run.
	Exists(ctx context.Context, runID string) (bool, error)

	// Create writes a fresh running context. Fails with ErrRunAlreadyExists
	// when state is already present for the run ID.
	Create(ctx context.Context, runID, workflowType string, params map[string]models.Value, steps []string) (*models.RunContext, error)

	// Load deserializes the persisted state; nil with ErrRunNotFound when absent.
	Load(ctx context.Context, runID string) (*models.RunContext, error)

	// StartStep inserts or overwrites a running step result with a fresh start
	// timestamp. Re-entrant: a stale running record from a crashed invocation
	// is simply reset. Does not move the cursor.
	StartStep(ctx context.Context, runID, stepName string) (*models.RunContext, error)

	// CompleteStep marks the step completed, merges its outputs into global
	// data, stores the fragment when one was rendered, and advances the cursor
	// by exactly one. The run becomes completed when the cursor reaches the
	// end of the step list.
	CompleteStep(ctx context.Context, runID, stepName string, outputData map[string]models.Value, fragmentHTML string) (*models.RunContext, error)

	// FailStep marks the step and the run failed. The cursor does not move, so
	// a retry resumes from the same step.
	FailStep(ctx context.Context, runID, stepName, errMsg string) (*models.RunContext, error)

	// Cancel marks the run cancelled; no further steps are accepted.
	Cancel(ctx context.Context, runID string) (*models.RunContext, error)

	// GetGlobalData reads one key from the shared data bag.
	GetGlobalData(ctx context.Context, runID, key string, def models.Value) (models.Value, error)

	// SetGlobalData writes one key into the shared data bag with immediate
	// persistence.
	SetGlobalData(ctx context.Context, runID, key string, value models.Value) error

	// SetOutputPath records the final document location produced by the
	// terminal step.
	SetOutputPath(ctx context.Context, runID, path string) error

	// NextStepInfo returns the derived progression view.
	NextStepInfo(ctx context.Context, runID string) (*NextStepInfo, error)

	// ListRuns returns summaries of all persisted runs.
	ListRuns(ctx context.Context) ([]RunSummary, error)

	// FragmentDir returns the directory where the run's rendered fragments live.
	FragmentDir(runID string) string

	// RunDir returns the directory that holds the run's artifacts.
	RunDir(runID string) string

	// HealthCheck verifies the backing storage is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the store.
	Close(ctx context.Context) error
}

// BuildNextStepInfo derives the progression view from a loaded context. Shared
// by store implementations so the view stays consistent across backends.
func BuildNextStepInfo(rc *models.RunContext) *NextStepInfo {
	switch rc.Status {
	case models.RunStatusCompleted:
		return &NextStepInfo{
			Completed:  true,
			OutputPath: rc.OutputPath,
		}
	case models.RunStatusFailed:
		info := &NextStepInfo{
			Failed:      true,
			StepResults: rc.StepResults,
		}

		for name, result := range rc.StepResults {
			if result.Status == models.StepStatusFailed {
				info.FailedStep = name

				break
			}
		}

		return info
	case models.RunStatusCancelled:
		return &NextStepInfo{Cancelled: true}
	default:
		return &NextStepInfo{
			CurrentStep:    rc.CurrentStep(),
			Progress:       Progress(rc),
			RemainingSteps: rc.RemainingSteps(),
		}
	}
}

// Progress formats the run's position as a human-readable fraction.
func Progress(rc *models.RunContext) string {
	position := rc.CurrentStepIndex + 1
	if position > len(rc.Steps) {
		position = len(rc.Steps)
	}

	return strconv.Itoa(position) + "/" + strconv.Itoa(len(rc.Steps))
}
