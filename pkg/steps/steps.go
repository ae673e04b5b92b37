// Package steps implements the domain logic collaborators for the scene
// analysis workflow. Step logic is pure with respect to run state: it reads
// resolved inputs and returns an output map, never touching persistence.
package steps

import (
	"context"

	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/render"
)

// Inputs carries the data a step may read: run parameters, accumulated global
// data, and caller-supplied per-invocation arguments.
type Inputs struct {
	RunID      string
	Params     map[string]models.Value
	GlobalData map[string]models.Value
	Args       map[string]models.Value
}

// Get resolves a key, preferring global data, then params, then args.
func (in Inputs) Get(key string) (models.Value, bool) {
	if v, ok := in.GlobalData[key]; ok {
		return v, true
	}

	if v, ok := in.Params[key]; ok {
		return v, true
	}

	if v, ok := in.Args[key]; ok {
		return v, true
	}

	return models.Value{}, false
}

// GetOr resolves a key or returns the default.
func (in Inputs) GetOr(key string, def models.Value) models.Value {
	if v, ok := in.Get(key); ok {
		return v
	}

	return def
}

// Logic is one step's domain logic. Execute returns the step's output map or
// an error; the engine records either outcome and never lets the error
// propagate past step execution.
type Logic interface {
	Name() string
	Component() render.ComponentKind
	Execute(ctx context.Context, in Inputs) (map[string]models.Value, error)
}

// Finalizer is implemented by the terminal step, which assembles the ordered
// fragment list into the final document instead of emitting a fragment.
type Finalizer interface {
	Finalize(ctx context.Context, in Inputs, fragmentPaths []string, runDir string) (map[string]models.Value, error)
}
