package steps

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/HarrySunV9x/hana-perf/pkg/catalog"
	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/render"
	"github.com/HarrySunV9x/hana-perf/pkg/report"
)

// FinalizeReport is the terminal step. It does not emit a fragment; instead it
// hands the ordered fragment list to the assembler and reports where the final
// document landed.
type FinalizeReport struct {
	assembler report.Assembler
}

func NewFinalizeReport(assembler report.Assembler) *FinalizeReport {
	return &FinalizeReport{assembler: assembler}
}

func (s *FinalizeReport) Name() string {
	return catalog.StepFinalizeReport
}

func (s *FinalizeReport) Component() render.ComponentKind {
	return ""
}

// Execute exists to satisfy Logic; the engine always routes the terminal step
// through Finalize.
func (s *FinalizeReport) Execute(ctx context.Context, in Inputs) (map[string]models.Value, error) {
	return s.Finalize(ctx, in, nil, "")
}

func (s *FinalizeReport) Finalize(_ context.Context, in Inputs, fragmentPaths []string, runDir string) (map[string]models.Value, error) {
	timestamp := in.GetOr(catalog.KeyTimestamp, models.StringValue("")).AsString()
	title := "Scene Analysis Report"

	if timestamp != "" {
		title += " - " + timestamp
	}

	outputPath := filepath.Join(runDir, "report.html")

	finalPath, err := s.assembler.Assemble(fragmentPaths, title, outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble report: %w", err)
	}

	return map[string]models.Value{
		catalog.KeyReportPath: models.StringValue(finalPath),
	}, nil
}
