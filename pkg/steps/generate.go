package steps

import (
	"context"
	"errors"

	"github.com/HarrySunV9x/hana-perf/pkg/catalog"
	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/render"
)

// GenerateAnalysis records the caller-authored scene analysis. The analysis
// body arrives as a per-invocation argument; the engine has already checked it
// resolves, the error here guards direct use.
type GenerateAnalysis struct{}

func NewGenerateAnalysis() *GenerateAnalysis {
	return &GenerateAnalysis{}
}

func (s *GenerateAnalysis) Name() string {
	return catalog.StepGenerateAnalysis
}

func (s *GenerateAnalysis) Component() render.ComponentKind {
	return render.ComponentSection
}

func (s *GenerateAnalysis) Execute(_ context.Context, in Inputs) (map[string]models.Value, error) {
	analysis, ok := in.Get(catalog.KeyAnalysisHTML)
	if !ok || analysis.AsString() == "" {
		return nil, errors.New("analysis_html not provided")
	}

	return map[string]models.Value{
		catalog.KeyAnalysisHTML: analysis,
	}, nil
}
