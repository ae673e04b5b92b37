package steps

import (
	"context"
	"errors"

	"github.com/HarrySunV9x/hana-perf/pkg/catalog"
	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/render"
)

// InitWorkflow is the first step of a run. The run state already exists by the
// time it executes; its job is to echo the run parameters into global data and
// produce the report header fragment.
type InitWorkflow struct{}

func NewInitWorkflow() *InitWorkflow {
	return &InitWorkflow{}
}

func (s *InitWorkflow) Name() string {
	return catalog.StepInitWorkflow
}

func (s *InitWorkflow) Component() render.ComponentKind {
	return render.ComponentHeader
}

func (s *InitWorkflow) Execute(_ context.Context, in Inputs) (map[string]models.Value, error) {
	logPath, ok := in.Get(catalog.KeyLogPath)
	if !ok {
		return nil, errors.New("log_path parameter missing")
	}

	timestamp, ok := in.Get(catalog.KeyTimestamp)
	if !ok {
		return nil, errors.New("timestamp parameter missing")
	}

	window := in.GetOr(catalog.KeyTimeWindow, models.FloatValue(defaultTimeWindow))

	return map[string]models.Value{
		catalog.KeyWorkflowID: models.StringValue(in.RunID),
		catalog.KeyLogPath:    logPath,
		catalog.KeyTimestamp:  timestamp,
		catalog.KeyTimeWindow: window,
	}, nil
}
