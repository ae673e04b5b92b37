package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/HarrySunV9x/hana-perf/pkg/catalog"
	"github.com/HarrySunV9x/hana-perf/pkg/log"
	"github.com/HarrySunV9x/hana-perf/pkg/models"
)

const defaultPort = 9091

// sharedFlags configure the state store, event bus, and logging for every
// subcommand.
func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "state-url",
			Usage:   "State store URL (directory path, file://, or redis://)",
			Value:   "./runs",
			Sources: cli.EnvVars("STATE_URL"),
		},
		&cli.StringFlag{
			Name:    "artifacts-path",
			Usage:   "Directory for fragments and reports when state lives in redis",
			Value:   "./runs",
			Sources: cli.EnvVars("ARTIFACTS_PATH"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus provider (kafka, memory, none)",
			Value:   "none",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Enable OpenTelemetry tracing for step executions",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

func main() {
	root := &cli.Command{
		Name:                  "hana-perf",
		Usage:                 "Run scene analysis workflows over device event logs",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			initCommand(),
			runStepCommand(),
			statusCommand(),
			cancelCommand(),
			listCommand(),
			stepsCommand(),
			serveCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func initCommand() *cli.Command {
	flags := append(sharedFlags(),
		&cli.StringFlag{
			Name:    "workflow",
			Usage:   "Workflow type to start",
			Value:   catalog.SceneAnalysisWorkflow,
			Sources: cli.EnvVars("WORKFLOW_TYPE"),
		},
		&cli.StringFlag{
			Name:     "log-path",
			Usage:    "Log file or directory to analyze",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "timestamp",
			Usage:    "Scene timestamp, e.g. 08-15 14:30:25.123",
			Required: true,
		},
		&cli.FloatFlag{
			Name:  "time-window",
			Usage: "Analysis window in seconds centered on the timestamp",
		},
	)

	return &cli.Command{
		Name:  "init",
		Usage: "Create a run and execute its initializing step",
		Flags: flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("cli")

			rt, err := newRuntime(ctx, logger, command)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			params := map[string]models.Value{
				catalog.KeyLogPath:   models.StringValue(command.String("log-path")),
				catalog.KeyTimestamp: models.StringValue(command.String("timestamp")),
			}
			if command.IsSet("time-window") {
				params[catalog.KeyTimeWindow] = models.FloatValue(command.Float("time-window"))
			}

			report, err := rt.engine.StartRun(ctx, command.String("workflow"), params)
			if err != nil {
				return err
			}

			fmt.Println(report.Format())

			return nil
		},
	}
}

func runStepCommand() *cli.Command {
	flags := append(sharedFlags(),
		&cli.StringSliceFlag{
			Name:  "arg",
			Usage: "Per-invocation argument as key=value (repeatable)",
		},
	)

	return &cli.Command{
		Name:      "run-step",
		Usage:     "Execute one step of an existing run",
		ArgsUsage: "RUN_ID STEP_NAME",
		Flags:     flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("cli")

			runID := command.Args().Get(0)
			stepName := command.Args().Get(1)

			if runID == "" || stepName == "" {
				return fmt.Errorf("usage: hana-perf run-step RUN_ID STEP_NAME")
			}

			args := make(map[string]models.Value)

			for _, pair := range command.StringSlice("arg") {
				key, value, found := strings.Cut(pair, "=")
				if !found {
					return fmt.Errorf("invalid --arg %q, expected key=value", pair)
				}

				args[key] = models.StringValue(value)
			}

			rt, err := newRuntime(ctx, logger, command)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			report, err := rt.engine.RunStep(ctx, runID, stepName, args)
			if err != nil {
				return err
			}

			fmt.Println(report.Format())

			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show run progress and next-step guidance",
		ArgsUsage: "RUN_ID",
		Flags:     sharedFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("cli")

			runID := command.Args().Get(0)
			if runID == "" {
				return fmt.Errorf("usage: hana-perf status RUN_ID")
			}

			rt, err := newRuntime(ctx, logger, command)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			info, err := rt.engine.Status(ctx, runID)
			if err != nil {
				return err
			}

			return printJSON(info)
		},
	}
}

func cancelCommand() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Abort an in-flight run",
		ArgsUsage: "RUN_ID",
		Flags:     sharedFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("cli")

			runID := command.Args().Get(0)
			if runID == "" {
				return fmt.Errorf("usage: hana-perf cancel RUN_ID")
			}

			rt, err := newRuntime(ctx, logger, command)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			rc, err := rt.engine.Cancel(ctx, runID)
			if err != nil {
				return err
			}

			fmt.Printf("Run %s cancelled\n", rc.RunID)

			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List persisted runs, newest first",
		Flags: sharedFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("cli")

			rt, err := newRuntime(ctx, logger, command)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			runs, err := rt.engine.Runs(ctx)
			if err != nil {
				return err
			}

			return printJSON(runs)
		},
	}
}

func stepsCommand() *cli.Command {
	return &cli.Command{
		Name:  "steps",
		Usage: "List registered step definitions in execution order",
		Flags: sharedFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("cli")

			cat, err := catalog.NewDefault(logger)
			if err != nil {
				return err
			}

			for _, def := range cat.ListSteps() {
				fmt.Printf("%d. %s (%s)\n   %s\n", def.Order, def.DisplayName, def.Name, def.Description)
			}

			return nil
		},
	}
}

func serveCommand() *cli.Command {
	flags := append(sharedFlags(),
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API server",
		Flags: flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing hana-perf API")

			rt, err := newRuntime(ctx, logger, command)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			api := NewAPI(logger, rt.engine)

			return api.Start(command.Int("port"))
		},
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(data))

	return nil
}
