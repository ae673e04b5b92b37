package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/persistence"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	return NewStore(t.TempDir())
}

func createRun(t *testing.T, store *Store, runID string) *models.RunContext {
	t.Helper()

	rc, err := store.Create(context.Background(), runID, "scene_analysis",
		map[string]models.Value{"log_path": models.StringValue("/tmp/events.log")},
		[]string{"step_a", "step_b", "step_c"})
	require.NoError(t, err)

	return rc
}

func TestStore_CreateAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rc := createRun(t, store, "run-1")

	assert.Equal(t, models.RunStatusRunning, rc.Status)
	assert.Equal(t, 0, rc.CurrentStepIndex)
	assert.Equal(t, int64(1), rc.Version)

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rc.RunID, loaded.RunID)
	assert.Equal(t, rc.Steps, loaded.Steps)
	assert.Equal(t, "/tmp/events.log", loaded.Params["log_path"].AsString())
	assert.NotNil(t, loaded.GlobalData)
	assert.NotNil(t, loaded.StepResults)

	dir, err := os.Stat(store.FragmentDir("run-1"))
	require.NoError(t, err)
	assert.True(t, dir.IsDir())
}

func TestStore_CreateDuplicateFails(t *testing.T) {
	store := newTestStore(t)

	createRun(t, store, "run-1")

	_, err := store.Create(context.Background(), "run-1", "scene_analysis", nil, []string{"step_a"})
	require.Error(t, err)
	assert.True(t, persistence.IsRunAlreadyExists(err))
}

func TestStore_LoadMissingRun(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, persistence.IsRunNotFound(err))
}

func TestStore_RejectsInvalidRunIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		runID string
	}{
		{name: "empty", runID: ""},
		{name: "path traversal", runID: "../escape"},
		{name: "forward slash", runID: "a/b"},
		{name: "backslash", runID: `a\b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Create(ctx, tt.runID, "scene_analysis", nil, []string{"step_a"})
			assert.Error(t, err)

			_, err = store.Load(ctx, tt.runID)
			assert.Error(t, err)
		})
	}
}

// Exercises the full lifecycle: two steps complete, the third fails, is
// retried, and finishes the run.
func TestStore_StepLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createRun(t, store, "run-1")

	_, err := store.StartStep(ctx, "run-1", "step_a")
	require.NoError(t, err)

	rc, err := store.CompleteStep(ctx, "run-1", "step_a",
		map[string]models.Value{"found": models.IntValue(3)}, "<div>a</div>")
	require.NoError(t, err)

	assert.Equal(t, 1, rc.CurrentStepIndex)
	assert.Equal(t, models.RunStatusRunning, rc.Status)
	assert.Equal(t, int64(3), rc.GlobalData["found"].AsInt())
	require.Len(t, rc.HTMLFragments, 1)
	assert.Equal(t, "01_step_a.html", filepath.Base(rc.HTMLFragments[0]))

	content, err := os.ReadFile(rc.HTMLFragments[0])
	require.NoError(t, err)
	assert.Equal(t, "<div>a</div>", string(content))

	_, err = store.StartStep(ctx, "run-1", "step_b")
	require.NoError(t, err)

	rc, err = store.CompleteStep(ctx, "run-1", "step_b", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 2, rc.CurrentStepIndex)
	assert.Len(t, rc.HTMLFragments, 1)

	// Third step fails; the cursor must stay put for the retry.
	_, err = store.StartStep(ctx, "run-1", "step_c")
	require.NoError(t, err)

	rc, err = store.FailStep(ctx, "run-1", "step_c", "source unreadable")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, rc.Status)
	assert.Equal(t, 2, rc.CurrentStepIndex)
	assert.Equal(t, models.StepStatusFailed, rc.StepResults["step_c"].Status)
	assert.Equal(t, "source unreadable", rc.StepResults["step_c"].Error)

	// Retry resets the step record and completes the run.
	rc, err = store.StartStep(ctx, "run-1", "step_c")
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusRunning, rc.StepResults["step_c"].Status)
	assert.Empty(t, rc.StepResults["step_c"].Error)
	assert.Equal(t, models.RunStatusRunning, rc.Status)

	rc, err = store.CompleteStep(ctx, "run-1", "step_c", nil, "<div>c</div>")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, rc.Status)
	assert.Equal(t, 3, rc.CurrentStepIndex)
	require.Len(t, rc.HTMLFragments, 2)
	assert.Equal(t, "02_step_c.html", filepath.Base(rc.HTMLFragments[1]))
}

func TestStore_CompleteStepMergeOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createRun(t, store, "run-1")

	_, err := store.CompleteStep(ctx, "run-1", "step_a",
		map[string]models.Value{"total": models.IntValue(1)}, "")
	require.NoError(t, err)

	rc, err := store.CompleteStep(ctx, "run-1", "step_b",
		map[string]models.Value{"total": models.IntValue(9)}, "")
	require.NoError(t, err)

	assert.Equal(t, int64(9), rc.GlobalData["total"].AsInt())
}

func TestStore_Cancel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createRun(t, store, "run-1")

	rc, err := store.Cancel(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, rc.Status)

	// Cancelling twice is harmless.
	_, err = store.Cancel(ctx, "run-1")
	require.NoError(t, err)
}

func TestStore_CancelCompletedRunFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "run-1", "scene_analysis", nil, []string{"step_a"})
	require.NoError(t, err)

	_, err = store.CompleteStep(ctx, "run-1", "step_a", nil, "")
	require.NoError(t, err)

	_, err = store.Cancel(ctx, "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot cancel")
}

func TestStore_VersionConflictDetected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createRun(t, store, "run-1")

	// A second store over the same root simulates another process.
	other := NewStore(store.root)

	_, err := other.StartStep(ctx, "run-1", "step_a")
	require.NoError(t, err)

	rc, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rc.Version)

	// Both processes observed version 2; the second save must conflict.
	_, err = other.CompleteStep(ctx, "run-1", "step_a", nil, "")
	require.NoError(t, err)

	err = store.save(rc, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrRunConflict)
}

func TestStore_GlobalData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createRun(t, store, "run-1")

	def := models.StringValue("fallback")

	v, err := store.GetGlobalData(ctx, "run-1", "missing", def)
	require.NoError(t, err)
	assert.Equal(t, "fallback", v.AsString())

	require.NoError(t, store.SetGlobalData(ctx, "run-1", "key", models.IntValue(5)))

	v, err = store.GetGlobalData(ctx, "run-1", "key", def)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.AsInt())
}

func TestStore_NextStepInfo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createRun(t, store, "run-1")

	info, err := store.NextStepInfo(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "step_a", info.CurrentStep)
	assert.Equal(t, "1/3", info.Progress)
	assert.Equal(t, []string{"step_a", "step_b", "step_c"}, info.RemainingSteps)

	_, err = store.CompleteStep(ctx, "run-1", "step_a", nil, "")
	require.NoError(t, err)

	info, err = store.NextStepInfo(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "step_b", info.CurrentStep)
	assert.Equal(t, "2/3", info.Progress)

	_, err = store.FailStep(ctx, "run-1", "step_b", "boom")
	require.NoError(t, err)

	info, err = store.NextStepInfo(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, info.Failed)
	assert.Equal(t, "step_b", info.FailedStep)
}

func TestStore_SetOutputPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "run-1", "scene_analysis", nil, []string{"step_a"})
	require.NoError(t, err)

	_, err = store.CompleteStep(ctx, "run-1", "step_a", nil, "")
	require.NoError(t, err)

	reportPath := filepath.Join(store.RunDir("run-1"), "report.html")
	require.NoError(t, store.SetOutputPath(ctx, "run-1", reportPath))

	info, err := store.NextStepInfo(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, info.Completed)
	assert.Equal(t, reportPath, info.OutputPath)
}

func TestStore_ListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	createRun(t, store, "run-old")
	time.Sleep(10 * time.Millisecond)
	createRun(t, store, "run-new")

	runs, err = store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].RunID)
	assert.Equal(t, "run-old", runs[1].RunID)
	assert.Equal(t, models.RunStatusRunning, runs[0].Status)
}

func TestStore_CorruptStateSurfacesTypedError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createRun(t, store, "run-1")
	require.NoError(t, os.WriteFile(store.statePath("run-1"), []byte("{not json"), 0600))

	_, err := store.Load(ctx, "run-1")
	require.Error(t, err)
	assert.True(t, persistence.IsStateCorrupt(err))
}
