// Package render turns structured step output into HTML report fragments.
package render

import (
	"fmt"

	"github.com/HarrySunV9x/hana-perf/pkg/models"
)

// ComponentKind selects which report component a fragment is rendered with.
type ComponentKind string

const (
	ComponentHeader   ComponentKind = "header"
	ComponentStats    ComponentKind = "stats"
	ComponentLogBlock ComponentKind = "log_block"
	ComponentTimeline ComponentKind = "timeline"
	ComponentSection  ComponentKind = "section"
)

// Renderer renders one component kind from a step's output map into a markup
// fragment.
type Renderer interface {
	Render(kind ComponentKind, data map[string]models.Value) (string, error)
}

// HTMLRenderer is the built-in template-backed renderer.
type HTMLRenderer struct{}

// NewHTMLRenderer creates the default renderer.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{}
}

// Render renders the fragment for a component kind.
func (r *HTMLRenderer) Render(kind ComponentKind, data map[string]models.Value) (string, error) {
	switch kind {
	case ComponentHeader:
		return renderHeader(data)
	case ComponentStats:
		return renderStats(data)
	case ComponentLogBlock:
		return renderLogBlock(data)
	case ComponentTimeline:
		return renderTimeline(data)
	case ComponentSection:
		return renderSection(data)
	default:
		return "", fmt.Errorf("unknown component kind: %q", kind)
	}
}
