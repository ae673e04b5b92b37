// Package web provides HTTP handlers and REST API endpoints for run management.
package web

import (
	"fmt"
	"math"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/HarrySunV9x/hana-perf/pkg/engine"
	"github.com/HarrySunV9x/hana-perf/pkg/models"
)

type APIHandlers struct {
	engine    *engine.Engine
	validator *validator.Validate
}

func NewAPIHandlers(engine *engine.Engine, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		engine:    engine,
		validator: validator,
	}
}

// CreateRun starts a new run and executes its initializing step.
func (h *APIHandlers) CreateRun(c fiber.Ctx) error {
	var req CreateRunRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, "Invalid request: "+err.Error())
	}

	params, err := toValues(req.Params)
	if err != nil {
		return badRequest(c, err.Error())
	}

	report, err := h.engine.StartRun(c.Context(), req.WorkflowType, params)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}

// RunStep executes one named step of an existing run.
func (h *APIHandlers) RunStep(c fiber.Ctx) error {
	runID := c.Params("id")
	stepName := c.Params("step")

	if runID == "" || stepName == "" {
		return badRequest(c, "Run ID and step name are required")
	}

	var req RunStepRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	args := make(map[string]models.Value, len(req.Args))
	for key, value := range req.Args {
		args[key] = models.StringValue(value)
	}

	report, err := h.engine.RunStep(c.Context(), runID, stepName, args)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(report)
}

// CancelRun aborts an in-flight run.
func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	runID := c.Params("id")

	if runID == "" {
		return badRequest(c, "Run ID is required")
	}

	rc, err := h.engine.Cancel(c.Context(), runID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"run_id": rc.RunID,
		"status": rc.Status,
	})
}

// GetRun returns the progress and next-step guidance for a run.
func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	runID := c.Params("id")

	if runID == "" {
		return badRequest(c, "Run ID is required")
	}

	info, err := h.engine.Status(c.Context(), runID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(info)
}

// ListRuns returns summaries of every persisted run, newest first.
func (h *APIHandlers) ListRuns(c fiber.Ctx) error {
	runs, err := h.engine.Runs(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs":        runs,
		"total_count": len(runs),
	})
}

// ListSteps returns the registered step definitions in execution order.
func (h *APIHandlers) ListSteps(c fiber.Ctx) error {
	definitions := h.engine.Catalog().ListSteps()

	steps := make([]StepDefinitionResponse, 0, len(definitions))
	for _, def := range definitions {
		steps = append(steps, StepDefinitionResponse{
			Name:        def.Name,
			DisplayName: def.DisplayName,
			Description: def.Description,
			Kind:        string(def.Kind),
			Inputs:      def.Inputs,
			Outputs:     def.Outputs,
			Order:       def.Order,
		})
	}

	return c.JSON(fiber.Map{
		"steps": steps,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "hana-perf API is healthy"
	httpStatus := http.StatusOK

	if err := h.engine.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "state store unreachable: " + err.Error()
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
	})
}

// toValues converts decoded JSON parameter values into tagged values. Numbers
// arrive as float64; integral ones map to the int kind so integer-typed
// parameters validate cleanly.
func toValues(raw map[string]any) (map[string]models.Value, error) {
	params := make(map[string]models.Value, len(raw))

	for key, value := range raw {
		switch v := value.(type) {
		case string:
			params[key] = models.StringValue(v)
		case float64:
			if v == math.Trunc(v) {
				params[key] = models.IntValue(int64(v))
			} else {
				params[key] = models.FloatValue(v)
			}
		case []any:
			items := make([]string, 0, len(v))

			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("parameter %s: list items must be strings", key)
				}

				items = append(items, s)
			}

			params[key] = models.StringListValue(items)
		default:
			return nil, fmt.Errorf("parameter %s: unsupported value type %T", key, value)
		}
	}

	return params, nil
}
