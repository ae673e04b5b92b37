// Package cmd wires concrete collaborators from configuration for the CLI and
// API entrypoints.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/HarrySunV9x/hana-perf/pkg/persistence"
	fileStore "github.com/HarrySunV9x/hana-perf/pkg/persistence/file"
	redisStore "github.com/HarrySunV9x/hana-perf/pkg/persistence/redis"
)

// NewStateStore creates a state store from a state URL. file:// (or a bare
// path) selects the file store; redis:// keeps the state document in Redis
// with artifacts under artifactsRoot.
func NewStateStore(ctx context.Context, logger *slog.Logger, stateURL, artifactsRoot string) (persistence.StateStore, error) {
	switch {
	case strings.HasPrefix(stateURL, "redis://"), strings.HasPrefix(stateURL, "rediss://"):
		store, err := redisStore.NewStore(stateURL, artifactsRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis state store: %w", err)
		}

		if err := store.HealthCheck(ctx); err != nil {
			return nil, fmt.Errorf("redis state store unreachable: %w", err)
		}

		logger.InfoContext(ctx, "Using redis state store")

		return store, nil
	default:
		logger.InfoContext(ctx, "Using file state store", "root", stateURL)

		return fileStore.NewStore(stateURL), nil
	}
}
