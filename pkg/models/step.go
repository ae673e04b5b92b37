package models

// StepKind categorizes a step inside a workflow.
type StepKind string

const (
	StepKindInit      StepKind = "init"
	StepKindSearch    StepKind = "search"
	StepKindExtract   StepKind = "extract"
	StepKindTransform StepKind = "transform"
	StepKindAnalyze   StepKind = "analyze"
	StepKindGenerate  StepKind = "generate"
	StepKindFinalize  StepKind = "finalize"
)

// StepDefinition describes one unit of work in a workflow: its identity, the
// data keys it consumes and produces, and its position in the execution order.
// Definitions are immutable once registered in the catalog and are never
// persisted per run.
type StepDefinition struct {
	Name        string   `json:"name"         validate:"required"`
	DisplayName string   `json:"display_name" validate:"required"`
	Description string   `json:"description"`
	Kind        StepKind `json:"kind"         validate:"required"`

	// Inputs are keys that must resolve from run params, global data, or
	// caller-supplied step arguments before the step may execute.
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`

	// EmitsHTML marks steps whose output is rendered into a report fragment.
	EmitsHTML bool `json:"emits_html"`

	// Order positions the step when listing the catalog.
	Order int `json:"order"`

	Config map[string]any `json:"config,omitempty"`
}
