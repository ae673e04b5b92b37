package main

import (
	"context"
	"log/slog"

	cli "github.com/urfave/cli/v3"

	"github.com/HarrySunV9x/hana-perf/pkg/catalog"
	"github.com/HarrySunV9x/hana-perf/pkg/cmd"
	"github.com/HarrySunV9x/hana-perf/pkg/engine"
	"github.com/HarrySunV9x/hana-perf/pkg/otelhelper"
	"github.com/HarrySunV9x/hana-perf/pkg/render"
	"github.com/HarrySunV9x/hana-perf/pkg/report"
	"github.com/HarrySunV9x/hana-perf/pkg/steps"
)

const serviceName = "hana-perf"

// runtime bundles the engine with the collaborators that need closing when
// the command finishes.
type runtime struct {
	engine *engine.Engine
	logger *slog.Logger

	closers []func() error
}

func (r *runtime) Close(ctx context.Context) {
	for _, closeFn := range r.closers {
		if err := closeFn(); err != nil {
			r.logger.ErrorContext(ctx, "Failed to close collaborator", "error", err)
		}
	}
}

// newRuntime wires the catalog, state store, renderer, step logic, and
// optional event bus and tracer from CLI flags.
func newRuntime(ctx context.Context, logger *slog.Logger, command *cli.Command) (*runtime, error) {
	cat, err := catalog.NewDefault(logger)
	if err != nil {
		return nil, err
	}

	store, err := cmd.NewStateStore(ctx, logger, command.String("state-url"), command.String("artifacts-path"))
	if err != nil {
		return nil, err
	}

	rt := &runtime{logger: logger}
	rt.closers = append(rt.closers, func() error { return store.Close(ctx) })

	logic := []steps.Logic{
		steps.NewInitWorkflow(),
		steps.NewSearchFiles(),
		steps.NewExtractLogs(),
		steps.NewAnalyzeTimeline(),
		steps.NewGenerateAnalysis(),
		steps.NewFinalizeReport(report.NewBuilder()),
	}

	var opts []engine.Option

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		rt.Close(ctx)

		return nil, err
	}

	if eventBus != nil {
		rt.closers = append(rt.closers, eventBus.Close)
		opts = append(opts, engine.WithEventBus(eventBus))
	}

	if command.Bool("tracing") {
		tracer, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			rt.Close(ctx)

			return nil, err
		}

		opts = append(opts, engine.WithTracer(tracer))
	}

	rt.engine = engine.New(cat, store, render.NewHTMLRenderer(), logic, logger, opts...)

	return rt, nil
}
