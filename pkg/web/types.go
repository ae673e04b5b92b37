// Package web provides HTTP request and response types for the run API.
package web

// CreateRunRequest represents the request body for starting a new run.
// Parameter values are converted to the tagged value types declared by the
// workflow's parameter schema.
type CreateRunRequest struct {
	WorkflowType string         `json:"workflow_type" validate:"required"`
	Params       map[string]any `json:"params"        validate:"required"`
}

// RunStepRequest represents the request body for executing one step of a run.
// Args carry per-invocation values that are not persisted run parameters.
type RunStepRequest struct {
	Args map[string]string `json:"args,omitempty"`
}

// StepDefinitionResponse is the catalog view of a registered step.
type StepDefinitionResponse struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Kind        string   `json:"kind"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
	Order       int      `json:"order"`
}
