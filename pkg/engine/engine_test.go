package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarrySunV9x/hana-perf/pkg/catalog"
	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/persistence"
	"github.com/HarrySunV9x/hana-perf/pkg/persistence/file"
	"github.com/HarrySunV9x/hana-perf/pkg/render"
	"github.com/HarrySunV9x/hana-perf/pkg/report"
	"github.com/HarrySunV9x/hana-perf/pkg/steps"
)

func newTestEngine(t *testing.T) (*Engine, *file.Store) {
	t.Helper()

	logger := slog.Default()

	cat, err := catalog.NewDefault(logger)
	require.NoError(t, err)

	store := file.NewStore(t.TempDir())

	logic := []steps.Logic{
		steps.NewInitWorkflow(),
		steps.NewSearchFiles(),
		steps.NewExtractLogs(),
		steps.NewAnalyzeTimeline(),
		steps.NewGenerateAnalysis(),
		steps.NewFinalizeReport(report.NewBuilder()),
	}

	return New(cat, store, render.NewHTMLRenderer(), logic, logger), store
}

func writeEventsLog(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	content := `08-15 14:30:20.100000 I WindowManager: input_focus: com.example.app/.MainActivity
08-15 14:30:24.000000 I WindowManager: input_focus: com.example.app/.SettingsActivity
08-15 14:30:22.000000 D ActivityManager: unrelated noise
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.log"), []byte(content), 0600))

	return dir
}

func sceneParams(logPath string) map[string]models.Value {
	return map[string]models.Value{
		catalog.KeyLogPath:   models.StringValue(logPath),
		catalog.KeyTimestamp: models.StringValue("08-15 14:30:25.000000"),
	}
}

func TestEngine_FullRun(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	logDir := writeEventsLog(t)

	rep, err := e.StartRun(ctx, catalog.SceneAnalysisWorkflow, sceneParams(logDir))
	require.NoError(t, err)
	assert.Equal(t, catalog.StepInitWorkflow, rep.StepName)
	assert.Equal(t, models.StepStatusCompleted, rep.Status)
	require.NotNil(t, rep.Next)
	assert.Equal(t, catalog.StepSearchFiles, rep.Next.CurrentStep)
	assert.Equal(t, "2/6", rep.Next.Progress)

	runID := rep.RunID

	rep, err = e.RunStep(ctx, runID, catalog.StepSearchFiles, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusCompleted, rep.Status)
	assert.Equal(t, "1", rep.Outputs[catalog.KeyFilesCount])

	rep, err = e.RunStep(ctx, runID, catalog.StepExtractLogs, nil)
	require.NoError(t, err)
	assert.Equal(t, "2", rep.Outputs[catalog.KeyTotalLogs])

	rep, err = e.RunStep(ctx, runID, catalog.StepAnalyzeTimeline, nil)
	require.NoError(t, err)
	assert.Equal(t, "2 items", rep.Outputs[catalog.KeyTimeline])

	rep, err = e.RunStep(ctx, runID, catalog.StepGenerateAnalysis, map[string]models.Value{
		catalog.KeyAnalysisHTML: models.StringValue("<p>Scene switch looks healthy.</p>"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusCompleted, rep.Status)

	rep, err = e.RunStep(ctx, runID, catalog.StepFinalizeReport, nil)
	require.NoError(t, err)
	require.NotNil(t, rep.Next)
	assert.True(t, rep.Next.Completed)
	assert.NotEmpty(t, rep.Next.OutputPath)

	content, err := os.ReadFile(rep.Next.OutputPath)
	require.NoError(t, err)

	html := string(content)
	assert.Contains(t, html, "Scene Analysis Report")
	assert.Contains(t, html, ".MainActivity")
	assert.Contains(t, html, "Scene switch looks healthy")

	// Five fragments were written: header, stats, logs, timeline, analysis.
	rc, err := store.Load(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, rc.HTMLFragments, 5)
	assert.Equal(t, models.RunStatusCompleted, rc.Status)
}

func TestEngine_StartRunUnknownWorkflow(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.StartRun(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkflowUnknown)
}

func TestEngine_StartRunMissingParamRejected(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.StartRun(context.Background(), catalog.SceneAnalysisWorkflow, map[string]models.Value{
		catalog.KeyLogPath: models.StringValue("/tmp"),
	})
	require.Error(t, err)
	assert.True(t, IsParamError(err))
}

func TestEngine_StartRunMissingSource(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.StartRun(context.Background(), catalog.SceneAnalysisWorkflow,
		sceneParams("/definitely/not/there"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceMissing)
}

func TestEngine_RunStepUnknownStep(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.RunStep(context.Background(), "run-x", "made_up", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStepUnknown)
}

func TestEngine_RunStepUnknownRun(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.RunStep(context.Background(), "run-x", catalog.StepSearchFiles, nil)
	require.Error(t, err)
	assert.True(t, persistence.IsRunNotFound(err))
}

func TestEngine_ValidationRejectionLeavesStateUntouched(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	rep, err := e.StartRun(ctx, catalog.SceneAnalysisWorkflow, sceneParams(writeEventsLog(t)))
	require.NoError(t, err)

	before, err := store.Load(ctx, rep.RunID)
	require.NoError(t, err)

	// generate_analysis needs data the run does not have yet.
	_, err = e.RunStep(ctx, rep.RunID, catalog.StepGenerateAnalysis, nil)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Missing, catalog.KeyAnalysisHTML)

	after, err := store.Load(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.CurrentStepIndex, after.CurrentStepIndex)
}

func TestEngine_DomainFailureParksRun(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	logDir := writeEventsLog(t)

	rep, err := e.StartRun(ctx, catalog.SceneAnalysisWorkflow, sceneParams(logDir))
	require.NoError(t, err)

	runID := rep.RunID

	// Removing the log path makes the search step fail as a domain error.
	require.NoError(t, os.RemoveAll(logDir))

	rep, err = e.RunStep(ctx, runID, catalog.StepSearchFiles, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusFailed, rep.Status)
	assert.Contains(t, rep.Error, "log path unavailable")
	require.NotNil(t, rep.Next)
	assert.True(t, rep.Next.Failed)
	assert.Equal(t, catalog.StepSearchFiles, rep.Next.FailedStep)

	rc, err := store.Load(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, rc.Status)
	assert.Equal(t, 1, rc.CurrentStepIndex)

	// Restoring the source and retrying the same step resumes the run.
	require.NoError(t, os.MkdirAll(logDir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "events.log"),
		[]byte("08-15 14:30:25.000000 input_focus: com.a/.B\n"), 0600))

	rep, err = e.RunStep(ctx, runID, catalog.StepSearchFiles, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusCompleted, rep.Status)

	rc, err = store.Load(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, rc.Status)
	assert.Equal(t, 2, rc.CurrentStepIndex)
}

func TestEngine_CancelledRunRejectsSteps(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	rep, err := e.StartRun(ctx, catalog.SceneAnalysisWorkflow, sceneParams(writeEventsLog(t)))
	require.NoError(t, err)

	rc, err := e.Cancel(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, rc.Status)

	_, err = e.RunStep(ctx, rep.RunID, catalog.StepSearchFiles, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunFinished)

	info, err := e.Status(ctx, rep.RunID)
	require.NoError(t, err)
	assert.True(t, info.Cancelled)
}

func TestEngine_TimeWindowDefaultApplied(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	rep, err := e.StartRun(ctx, catalog.SceneAnalysisWorkflow, sceneParams(writeEventsLog(t)))
	require.NoError(t, err)

	rc, err := store.Load(ctx, rep.RunID)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, rc.Params[catalog.KeyTimeWindow].AsFloat(), 0.0001)
	assert.InDelta(t, 20.0, rc.GlobalData[catalog.KeyTimeWindow].AsFloat(), 0.0001)
}

func TestEngine_StartRunLeavesCallerParamsUntouched(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	params := sceneParams(writeEventsLog(t))

	_, err := e.StartRun(ctx, catalog.SceneAnalysisWorkflow, params)
	require.NoError(t, err)

	assert.NotContains(t, params, catalog.KeyTimeWindow)
	assert.Len(t, params, 2)
}

func TestEngine_ReplayedStepAppendsFragmentAndAdvances(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	rep, err := e.StartRun(ctx, catalog.SceneAnalysisWorkflow, sceneParams(writeEventsLog(t)))
	require.NoError(t, err)

	runID := rep.RunID

	_, err = e.RunStep(ctx, runID, catalog.StepSearchFiles, nil)
	require.NoError(t, err)

	// Re-invoking an already-completed step mid-run is allowed with a warning.
	// It records a second fragment and moves the cursor, trusting the caller.
	rep, err = e.RunStep(ctx, runID, catalog.StepSearchFiles, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusCompleted, rep.Status)

	rc, err := store.Load(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 3, rc.CurrentStepIndex)
	assert.Len(t, rc.HTMLFragments, 3)
}

func TestEngine_Runs(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	rep, err := e.StartRun(ctx, catalog.SceneAnalysisWorkflow, sceneParams(writeEventsLog(t)))
	require.NoError(t, err)

	runs, err := e.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.RunID, runs[0].RunID)
	assert.Equal(t, catalog.SceneAnalysisWorkflow, runs[0].WorkflowType)
}

func TestNewRunID(t *testing.T) {
	id := NewRunID("08-15 14:30:25.123")

	assert.True(t, len(id) > len("scene_"))
	assert.NotContains(t, id, ":")
	assert.NotContains(t, id, " ")
	assert.NotContains(t, id, ".")
	assert.NotEqual(t, id, NewRunID("08-15 14:30:25.123"))
}

func TestEngine_StepPanicRecorded(t *testing.T) {
	logger := slog.Default()

	cat, err := catalog.NewDefault(logger)
	require.NoError(t, err)

	store := file.NewStore(t.TempDir())

	logic := []steps.Logic{
		steps.NewInitWorkflow(),
		panicStep{},
		steps.NewExtractLogs(),
		steps.NewAnalyzeTimeline(),
		steps.NewGenerateAnalysis(),
		steps.NewFinalizeReport(report.NewBuilder()),
	}

	e := New(cat, store, render.NewHTMLRenderer(), logic, logger)
	ctx := context.Background()

	rep, err := e.StartRun(ctx, catalog.SceneAnalysisWorkflow, sceneParams(writeEventsLog(t)))
	require.NoError(t, err)

	rep, err = e.RunStep(ctx, rep.RunID, catalog.StepSearchFiles, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusFailed, rep.Status)
	assert.Contains(t, rep.Error, "step panicked")
}

type panicStep struct{}

func (panicStep) Name() string                    { return catalog.StepSearchFiles }
func (panicStep) Component() render.ComponentKind { return render.ComponentStats }

func (panicStep) Execute(context.Context, steps.Inputs) (map[string]models.Value, error) {
	panic(errors.New("boom"))
}
