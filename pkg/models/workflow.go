package models

// ParamType tags the expected type of one workflow parameter.
type ParamType string

const (
	ParamTypeString ParamType = "string"
	ParamTypeInt    ParamType = "int"
	ParamTypeFloat  ParamType = "float"
)

// ParamSpec declares one caller-supplied parameter of a workflow.
type ParamSpec struct {
	Type        ParamType `json:"type"     validate:"required"`
	Required    bool      `json:"required"`
	Default     *Value    `json:"default,omitempty"`
	Description string    `json:"description"`
}

// WorkflowDefinition describes a workflow: an ordered list of step names plus
// the schema of its input parameters. One definition can back many runs; the
// step list is copied into each run at creation so later catalog edits never
// change an in-flight run.
type WorkflowDefinition struct {
	Name        string `json:"name"         validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
	Description string `json:"description"`

	Steps []string `json:"steps" validate:"required,min=1"`

	Params map[string]ParamSpec `json:"params"`
}
