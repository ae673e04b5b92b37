package catalog

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarrySunV9x/hana-perf/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func stepDef(name string, order int) *models.StepDefinition {
	return &models.StepDefinition{
		Name:        name,
		DisplayName: name,
		Description: "test step",
		Kind:        models.StepKindTransform,
		Order:       order,
	}
}

func TestCatalog_RegisterStepValidates(t *testing.T) {
	c := New(testLogger())

	err := c.RegisterStep(&models.StepDefinition{DisplayName: "missing name"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid step definition")

	require.NoError(t, c.RegisterStep(stepDef("step_a", 1)))

	def, ok := c.Step("step_a")
	require.True(t, ok)
	assert.Equal(t, "step_a", def.Name)
}

func TestCatalog_RegisterReplacesByName(t *testing.T) {
	c := New(testLogger())

	require.NoError(t, c.RegisterStep(stepDef("step_a", 1)))

	replacement := stepDef("step_a", 1)
	replacement.Description = "updated"
	require.NoError(t, c.RegisterStep(replacement))

	def, ok := c.Step("step_a")
	require.True(t, ok)
	assert.Equal(t, "updated", def.Description)
	assert.Len(t, c.ListSteps(), 1)
}

func TestCatalog_ListStepsOrdered(t *testing.T) {
	c := New(testLogger())

	require.NoError(t, c.RegisterStep(stepDef("zz_first", 1)))
	require.NoError(t, c.RegisterStep(stepDef("aa_third", 3)))
	require.NoError(t, c.RegisterStep(stepDef("mm_second", 2)))
	require.NoError(t, c.RegisterStep(stepDef("aa_tied", 2)))

	var names []string
	for _, def := range c.ListSteps() {
		names = append(names, def.Name)
	}

	assert.Equal(t, []string{"zz_first", "aa_tied", "mm_second", "aa_third"}, names)
}

func TestCatalog_WorkflowStepsSkipsDanglingRefs(t *testing.T) {
	c := New(testLogger())

	require.NoError(t, c.RegisterStep(stepDef("step_a", 1)))
	require.NoError(t, c.RegisterWorkflow(&models.WorkflowDefinition{
		Name:        "wf",
		DisplayName: "wf",
		Description: "test workflow",
		Steps:       []string{"step_a", "step_missing"},
	}))

	defs := c.WorkflowSteps("wf")
	require.Len(t, defs, 1)
	assert.Equal(t, "step_a", defs[0].Name)

	assert.Empty(t, c.WorkflowSteps("unknown"))
}

func TestNewDefault_SceneAnalysisWorkflow(t *testing.T) {
	c, err := NewDefault(testLogger())
	require.NoError(t, err)

	workflow, ok := c.Workflow(SceneAnalysisWorkflow)
	require.True(t, ok)
	require.Len(t, workflow.Steps, 6)
	assert.Equal(t, StepInitWorkflow, workflow.Steps[0])
	assert.Equal(t, StepFinalizeReport, workflow.Steps[5])

	defs := c.WorkflowSteps(SceneAnalysisWorkflow)
	require.Len(t, defs, 6)

	for i, def := range defs {
		assert.Equal(t, i+1, def.Order)
	}

	// Only the terminal step skips fragment emission.
	for _, def := range defs[:5] {
		assert.True(t, def.EmitsHTML, def.Name)
	}

	assert.False(t, defs[5].EmitsHTML)

	require.Contains(t, workflow.Params, KeyTimeWindow)
	window := workflow.Params[KeyTimeWindow]
	assert.False(t, window.Required)
	require.NotNil(t, window.Default)
	assert.InDelta(t, 20.0, window.Default.AsFloat(), 0.0001)
}
