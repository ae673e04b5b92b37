// Package engine implements the step-execution contract: validate, run,
// record, advance. Every invocation executes at most one step of one run and
// returns a structured report telling the caller what to do next.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/HarrySunV9x/hana-perf/pkg/catalog"
	"github.com/HarrySunV9x/hana-perf/pkg/eventbus"
	"github.com/HarrySunV9x/hana-perf/pkg/events"
	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/otelhelper"
	"github.com/HarrySunV9x/hana-perf/pkg/persistence"
	"github.com/HarrySunV9x/hana-perf/pkg/render"
	"github.com/HarrySunV9x/hana-perf/pkg/steps"
)

// Engine drives workflow runs one externally-triggered step at a time. It
// owns no scheduling; the caller decides when the next invocation happens.
type Engine struct {
	catalog  *catalog.Catalog
	store    persistence.StateStore
	renderer render.Renderer
	logic    map[string]steps.Logic
	bus      eventbus.EventPublisher
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithEventBus publishes run and step lifecycle events to the given bus.
func WithEventBus(bus eventbus.EventPublisher) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithTracer wraps step executions in tracing spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// New builds an engine over the given catalog, store, renderer, and step
// logic collaborators.
func New(cat *catalog.Catalog, store persistence.StateStore, renderer render.Renderer, logic []steps.Logic, logger *slog.Logger, opts ...Option) *Engine {
	byName := make(map[string]steps.Logic, len(logic))
	for _, l := range logic {
		byName[l.Name()] = l
	}

	e := &Engine{
		catalog:  cat,
		store:    store,
		renderer: renderer,
		logic:    byName,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// NewRunID derives a run identifier from the analysis timestamp plus a random
// suffix, so directories sort naturally and never collide.
func NewRunID(timestamp string) string {
	sanitized := strings.NewReplacer(":", "", " ", "_", ".", "").Replace(timestamp)

	return "scene_" + sanitized + "_" + uuid.NewString()[:8]
}

// StartRun validates the caller parameters against the workflow's schema,
// creates the persisted run, and executes the initializing step. The log path
// must exist before any state is written.
func (e *Engine) StartRun(ctx context.Context, workflowType string, params map[string]models.Value) (*StepReport, error) {
	workflow, ok := e.catalog.Workflow(workflowType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowUnknown, workflowType)
	}

	params = applyDefaults(workflow, params)

	if err := validateParams(workflow, params); err != nil {
		return nil, err
	}

	logPath := params[catalog.KeyLogPath].AsString()
	if _, err := os.Stat(logPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, logPath)
	}

	runID := NewRunID(params[catalog.KeyTimestamp].AsString())

	rc, err := e.store.Create(ctx, runID, workflowType, params, workflow.Steps)
	if err != nil {
		return nil, err
	}

	e.publish(ctx, rc.RunID, events.RunCreated{
		BaseEvent: e.baseEvent(events.RunCreatedEvent, rc),
		Steps:     rc.Steps,
	})

	if len(rc.Steps) == 0 {
		return nil, fmt.Errorf("workflow %s has no steps", workflowType)
	}

	return e.RunStep(ctx, runID, rc.Steps[0], nil)
}

func applyDefaults(workflow *models.WorkflowDefinition, params map[string]models.Value) map[string]models.Value {
	// Work on a copy; the caller's map must not grow defaults.
	merged := models.MergeValues(make(map[string]models.Value, len(params)), params)

	for name, spec := range workflow.Params {
		if _, ok := merged[name]; !ok && spec.Default != nil {
			merged[name] = *spec.Default
		}
	}

	return merged
}

func validateParams(workflow *models.WorkflowDefinition, params map[string]models.Value) error {
	schemaLoader := gojsonschema.NewGoLoader(workflow.ParamSchema())
	docLoader := gojsonschema.NewGoLoader(models.PlainMap(params))

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("parameter schema validation failed: %w", err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return &ParamError{WorkflowType: workflow.Name, Problems: problems}
	}

	return nil
}

// RunStep executes one step of one run. NotFound and validation rejections
// leave the persisted state untouched; domain failures are recorded via the
// store and reported, never propagated.
func (e *Engine) RunStep(ctx context.Context, runID, stepName string, args map[string]models.Value) (*StepReport, error) {
	def, ok := e.catalog.Step(stepName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStepUnknown, stepName)
	}

	rc, err := e.store.Load(ctx, runID)
	if err != nil {
		return nil, err
	}

	if rc.Status == models.RunStatusCancelled || rc.Status == models.RunStatusCompleted {
		return nil, fmt.Errorf("%w: status %s", ErrRunFinished, rc.Status)
	}

	in := steps.Inputs{
		RunID:      runID,
		Params:     rc.Params,
		GlobalData: rc.GlobalData,
		Args:       args,
	}

	if missing := missingInputs(def, in); len(missing) > 0 {
		return nil, &ValidationError{StepName: stepName, Missing: missing}
	}

	ctx, span := e.startSpan(ctx, rc, def)
	defer endSpan(span)

	logger := e.logger.With("run_id", runID, "step", stepName)
	logger.InfoContext(ctx, "Executing step")

	if cur := rc.CurrentStep(); cur != "" && cur != stepName {
		logger.WarnContext(ctx, "Step invoked out of cursor order", "expected", cur)
	}

	if _, err := e.store.StartStep(ctx, runID, stepName); err != nil {
		return nil, err
	}

	startedAt := time.Now()

	e.publish(ctx, rc.RunID, events.StepStarted{
		BaseEvent: e.baseEvent(events.StepStartedEvent, rc),
		StepName:  stepName,
	})

	output, execErr := e.executeLogic(ctx, def, in, rc)

	var fragment string

	if execErr == nil && def.EmitsHTML {
		fragment, execErr = e.renderer.Render(e.logic[stepName].Component(), output)
		if execErr != nil {
			execErr = fmt.Errorf("fragment rendering failed: %w", execErr)
		}
	}

	if execErr != nil {
		return e.recordFailure(ctx, rc, def, span, execErr)
	}

	updated, err := e.store.CompleteStep(ctx, runID, stepName, output, fragment)
	if err != nil {
		return nil, err
	}

	if def.Kind == models.StepKindFinalize {
		if path, ok := output[catalog.KeyReportPath]; ok {
			if err := e.store.SetOutputPath(ctx, runID, path.AsString()); err != nil {
				return nil, err
			}

			updated.OutputPath = path.AsString()
		}
	}

	e.publish(ctx, rc.RunID, events.StepCompleted{
		BaseEvent:  e.baseEvent(events.StepCompletedEvent, rc),
		StepName:   stepName,
		OutputKeys: outputKeys(output),
		Duration:   time.Since(startedAt),
	})

	if updated.Status == models.RunStatusCompleted {
		e.publish(ctx, rc.RunID, events.RunCompleted{
			BaseEvent:  e.baseEvent(events.RunCompletedEvent, rc),
			OutputPath: updated.OutputPath,
			Duration:   time.Since(updated.CreatedAt),
		})
	}

	logger.InfoContext(ctx, "Step completed", "progress", persistence.Progress(updated))

	return e.buildReport(def, updated, output, ""), nil
}

// executeLogic runs the step's domain logic. A panic is converted into an
// error as a last-resort guard; logic is expected to return errors explicitly.
func (e *Engine) executeLogic(ctx context.Context, def *models.StepDefinition, in steps.Inputs, rc *models.RunContext) (output map[string]models.Value, err error) {
	logic, ok := e.logic[def.Name]
	if !ok {
		return nil, fmt.Errorf("no logic registered for step %s", def.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()

	if finalizer, ok := logic.(steps.Finalizer); ok && def.Kind == models.StepKindFinalize {
		return finalizer.Finalize(ctx, in, rc.HTMLFragments, e.store.RunDir(rc.RunID))
	}

	return logic.Execute(ctx, in)
}

// recordFailure converts a domain error into a failed step result and a
// failed run, and reports it to the caller as a structured outcome.
func (e *Engine) recordFailure(ctx context.Context, rc *models.RunContext, def *models.StepDefinition, span trace.Span, execErr error) (*StepReport, error) {
	if span != nil {
		otelhelper.SetError(span, execErr)
	}

	e.logger.ErrorContext(ctx, "Step failed", "run_id", rc.RunID, "step", def.Name, "error", execErr)

	updated, err := e.store.FailStep(ctx, rc.RunID, def.Name, execErr.Error())
	if err != nil {
		return nil, err
	}

	e.publish(ctx, rc.RunID, events.StepFailed{
		BaseEvent: e.baseEvent(events.StepFailedEvent, rc),
		StepName:  def.Name,
		Error:     execErr.Error(),
	})

	e.publish(ctx, rc.RunID, events.RunFailed{
		BaseEvent: e.baseEvent(events.RunFailedEvent, rc),
		StepName:  def.Name,
		Error:     execErr.Error(),
	})

	return e.buildReport(def, updated, nil, execErr.Error()), nil
}

// Cancel marks a run cancelled so no further steps are accepted.
func (e *Engine) Cancel(ctx context.Context, runID string) (*models.RunContext, error) {
	rc, err := e.store.Cancel(ctx, runID)
	if err != nil {
		return nil, err
	}

	e.publish(ctx, rc.RunID, events.RunCancelled{
		BaseEvent: e.baseEvent(events.RunCancelledEvent, rc),
	})

	return rc, nil
}

// Status returns the derived progression view for a run.
func (e *Engine) Status(ctx context.Context, runID string) (*persistence.NextStepInfo, error) {
	return e.store.NextStepInfo(ctx, runID)
}

// Runs lists all persisted runs.
func (e *Engine) Runs(ctx context.Context) ([]persistence.RunSummary, error) {
	return e.store.ListRuns(ctx)
}

// HealthCheck verifies the backing state store is reachable.
func (e *Engine) HealthCheck(ctx context.Context) error {
	return e.store.HealthCheck(ctx)
}

// Catalog exposes the injected definitions for read-only listing.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

func missingInputs(def *models.StepDefinition, in steps.Inputs) []string {
	var missing []string

	for _, key := range def.Inputs {
		if _, ok := in.Get(key); !ok {
			missing = append(missing, key)
		}
	}

	return missing
}

func outputKeys(output map[string]models.Value) []string {
	keys := make([]string, 0, len(output))
	for k := range output {
		keys = append(keys, k)
	}

	return keys
}

func (e *Engine) baseEvent(eventType events.EventType, rc *models.RunContext) events.BaseEvent {
	id := uuid.NewString()
	if e.bus != nil {
		if bus, ok := e.bus.(interface{ GenerateID() string }); ok {
			id = bus.GenerateID()
		}
	}

	return events.BaseEvent{
		ID:           id,
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		RunID:        rc.RunID,
		WorkflowType: rc.WorkflowType,
	}
}

func (e *Engine) publish(ctx context.Context, runID string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, runID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "type", event.GetType(), "error", err)
	}
}

func (e *Engine) startSpan(ctx context.Context, rc *models.RunContext, def *models.StepDefinition) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, nil
	}

	return otelhelper.StartSpan(ctx, e.tracer, "engine.run_step",
		attribute.String(otelhelper.RunIDKey, rc.RunID),
		attribute.String(otelhelper.WorkflowTypeKey, rc.WorkflowType),
		attribute.String(otelhelper.StepNameKey, def.Name),
		attribute.String(otelhelper.StepKindKey, string(def.Kind)),
	)
}

func endSpan(span trace.Span) {
	if span != nil {
		span.End()
	}
}
