// Package catalog holds the immutable step and workflow definitions. The
// catalog is built once at process start and injected into the engine; nothing
// mutates it afterwards, so concurrent reads need no locking.
package catalog

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/HarrySunV9x/hana-perf/pkg/models"
)

// Catalog is the in-process registry of step and workflow definitions.
type Catalog struct {
	logger    *slog.Logger
	validate  *validator.Validate
	steps     map[string]*models.StepDefinition
	workflows map[string]*models.WorkflowDefinition
}

// New creates an empty catalog.
func New(logger *slog.Logger) *Catalog {
	return &Catalog{
		logger:    logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		steps:     make(map[string]*models.StepDefinition),
		workflows: make(map[string]*models.WorkflowDefinition),
	}
}

// RegisterStep inserts or replaces a step definition by name.
func (c *Catalog) RegisterStep(def *models.StepDefinition) error {
	if err := c.validate.Struct(def); err != nil {
		return fmt.Errorf("invalid step definition: %w", err)
	}

	c.steps[def.Name] = def

	return nil
}

// RegisterWorkflow inserts or replaces a workflow definition by name.
func (c *Catalog) RegisterWorkflow(def *models.WorkflowDefinition) error {
	if err := c.validate.Struct(def); err != nil {
		return fmt.Errorf("invalid workflow definition: %w", err)
	}

	c.workflows[def.Name] = def

	return nil
}

// Step returns the definition for a name, or false when unknown.
func (c *Catalog) Step(name string) (*models.StepDefinition, bool) {
	def, ok := c.steps[name]

	return def, ok
}

// Workflow returns the definition for a name, or false when unknown.
func (c *Catalog) Workflow(name string) (*models.WorkflowDefinition, bool) {
	def, ok := c.workflows[name]

	return def, ok
}

// WorkflowSteps returns the ordered step definitions of a workflow. Step names
// that fail to resolve are skipped rather than crashing the lookup; a dangling
// reference is logged once here and callers see the steps that do exist.
func (c *Catalog) WorkflowSteps(workflowName string) []*models.StepDefinition {
	workflow, ok := c.workflows[workflowName]
	if !ok {
		return []*models.StepDefinition{}
	}

	defs := make([]*models.StepDefinition, 0, len(workflow.Steps))

	for _, stepName := range workflow.Steps {
		def, ok := c.steps[stepName]
		if !ok {
			if c.logger != nil {
				c.logger.Warn("workflow references unknown step",
					"workflow", workflowName, "step", stepName)
			}

			continue
		}

		defs = append(defs, def)
	}

	return defs
}

// ListSteps returns all registered steps sorted by execution order, ties
// broken by name so the output is deterministic.
func (c *Catalog) ListSteps() []*models.StepDefinition {
	defs := make([]*models.StepDefinition, 0, len(c.steps))
	for _, def := range c.steps {
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Order != defs[j].Order {
			return defs[i].Order < defs[j].Order
		}

		return defs[i].Name < defs[j].Name
	})

	return defs
}

// ListWorkflows returns all registered workflows sorted by name.
func (c *Catalog) ListWorkflows() []*models.WorkflowDefinition {
	defs := make([]*models.WorkflowDefinition, 0, len(c.workflows))
	for _, def := range c.workflows {
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})

	return defs
}
