package models

// JSONSchema represents a JSON Schema document used to validate caller-supplied
// run parameters.
type JSONSchema struct {
	Type                 string               `json:"type"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	Required             []string             `json:"required,omitempty"`
	AdditionalProperties bool                 `json:"additionalProperties"`
	Title                string               `json:"title,omitempty"`
	Description          string               `json:"description,omitempty"`
}

// Property represents a JSON Schema property.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// ParamSchema converts the workflow's parameter specs into a JSON Schema
// document. Unknown parameters are rejected via additionalProperties.
func (w *WorkflowDefinition) ParamSchema() *JSONSchema {
	schema := &JSONSchema{
		Type:       "object",
		Title:      w.Name,
		Properties: make(map[string]*Property, len(w.Params)),
	}

	for name, spec := range w.Params {
		prop := &Property{
			Description: spec.Description,
		}

		switch spec.Type {
		case ParamTypeInt:
			prop.Type = "integer"
		case ParamTypeFloat:
			prop.Type = "number"
		default:
			prop.Type = "string"
		}

		if spec.Default != nil {
			switch spec.Default.Kind {
			case KindInt:
				prop.Default = spec.Default.Int
			case KindFloat:
				prop.Default = spec.Default.Float
			default:
				prop.Default = spec.Default.Str
			}
		}

		schema.Properties[name] = prop

		if spec.Required {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}
