package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/persistence"
)

// StepReport is the structured outcome of one step invocation: what the step
// produced, whether it succeeded, and what the caller should invoke next.
type StepReport struct {
	RunID       string            `json:"run_id"`
	StepName    string            `json:"step_name"`
	DisplayName string            `json:"display_name"`
	Status      models.StepStatus `json:"status"`
	Outputs     map[string]string `json:"outputs,omitempty"`
	Error       string            `json:"error,omitempty"`

	Next *persistence.NextStepInfo `json:"next"`
}

func (e *Engine) buildReport(def *models.StepDefinition, rc *models.RunContext, output map[string]models.Value, errMsg string) *StepReport {
	report := &StepReport{
		RunID:       rc.RunID,
		StepName:    def.Name,
		DisplayName: def.DisplayName,
		Status:      models.StepStatusCompleted,
		Next:        persistence.BuildNextStepInfo(rc),
	}

	if errMsg != "" {
		report.Status = models.StepStatusFailed
		report.Error = errMsg

		return report
	}

	report.Outputs = make(map[string]string, len(output))
	for key, value := range output {
		report.Outputs[key] = value.Display()
	}

	return report
}

// Format renders the report as the human-readable text handed back to the
// external caller: output summary first, then the next action to take.
func (r *StepReport) Format() string {
	var b strings.Builder

	if r.Status == models.StepStatusFailed {
		fmt.Fprintf(&b, "Step %s failed: %s\n", r.DisplayName, r.Error)
		fmt.Fprintf(&b, "The run is parked at %s; fix the condition and re-invoke the same step to retry.\n", r.StepName)

		return b.String()
	}

	fmt.Fprintf(&b, "Step %s completed\n\n", r.DisplayName)

	if len(r.Outputs) > 0 {
		b.WriteString("Outputs:\n")

		keys := make([]string, 0, len(r.Outputs))
		for k := range r.Outputs {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, r.Outputs[k])
		}

		b.WriteString("\n")
	}

	switch {
	case r.Next == nil:
	case r.Next.Completed:
		b.WriteString("Workflow completed.\n")

		if r.Next.OutputPath != "" {
			fmt.Fprintf(&b, "Report written to %s\n", r.Next.OutputPath)
		}
	case r.Next.Failed:
		fmt.Fprintf(&b, "Run failed at step %s.\n", r.Next.FailedStep)
	case r.Next.Cancelled:
		b.WriteString("Run was cancelled.\n")
	default:
		fmt.Fprintf(&b, "Next step (%s): %s\n", r.Next.Progress, r.Next.CurrentStep)
		fmt.Fprintf(&b, "Invoke with run_id %q\n", r.RunID)
	}

	return b.String()
}
