// Package redis provides a Redis-backed state store. The state document lives
// in Redis, keyed by run ID; rendered fragments and the final report are still
// written to a local artifacts directory, since they are files handed to the
// user.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/persistence"
)

const (
	runKeyPrefix = "hana-perf:run:"
	runIndexKey  = "hana-perf:runs"
)

// Store implements persistence.StateStore on Redis.
type Store struct {
	client        *redis.Client
	artifactsRoot string
}

// NewStore creates a Redis store from a redis:// URL. Artifacts are written
// under artifactsRoot, one directory per run.
func NewStore(redisURL, artifactsRoot string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	return &Store{
		client:        redis.NewClient(opts),
		artifactsRoot: artifactsRoot,
	}, nil
}

func runKey(runID string) string {
	return runKeyPrefix + runID
}

// RunDir returns the local directory that holds the run's artifacts.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.artifactsRoot, runID)
}

// FragmentDir returns the local directory for the run's rendered fragments.
func (s *Store) FragmentDir(runID string) string {
	return filepath.Join(s.RunDir(runID), "fragments")
}

// Exists reports whether persisted state is present for the run.
func (s *Store) Exists(ctx context.Context, runID string) (bool, error) {
	n, err := s.client.Exists(ctx, runKey(runID)).Result()
	if err != nil {
		return false, persistence.NewRunError("Exists", runID, err)
	}

	return n > 0, nil
}

// Create writes a fresh running context. SetNX guarantees at most one creation
// per run ID even across processes.
func (s *Store) Create(ctx context.Context, runID, workflowType string, params map[string]models.Value, steps []string) (*models.RunContext, error) {
	rc := models.NewRunContext(runID, workflowType, params, steps, time.Now().UTC())

	data, err := json.Marshal(rc)
	if err != nil {
		return nil, persistence.NewRunError("Create", runID, err)
	}

	ok, err := s.client.SetNX(ctx, runKey(runID), data, 0).Result()
	if err != nil {
		return nil, persistence.NewRunError("Create", runID, err)
	}

	if !ok {
		return nil, persistence.NewRunError("Create", runID, persistence.ErrRunAlreadyExists)
	}

	if err := s.client.SAdd(ctx, runIndexKey, runID).Err(); err != nil {
		return nil, persistence.NewRunError("Create", runID, err)
	}

	if err := os.MkdirAll(s.FragmentDir(runID), 0750); err != nil {
		return nil, persistence.NewRunError("Create", runID, fmt.Errorf("failed to create artifacts directory: %w", err))
	}

	return rc, nil
}

// Load deserializes the persisted state document.
func (s *Store) Load(ctx context.Context, runID string) (*models.RunContext, error) {
	data, err := s.client.Get(ctx, runKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewRunError("Load", runID, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("Load", runID, err)
	}

	var rc models.RunContext

	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, persistence.NewRunError("Load", runID, fmt.Errorf("%w: %v", persistence.ErrStateCorrupt, err))
	}

	return &rc, nil
}

// mutate runs one load-mutate-save cycle inside a WATCH transaction so a
// concurrent writer aborts the update instead of losing it.
func (s *Store) mutate(ctx context.Context, op, runID string, fn func(rc *models.RunContext) error) (*models.RunContext, error) {
	var updated *models.RunContext

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, runKey(runID)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return persistence.ErrRunNotFound
			}

			return err
		}

		var rc models.RunContext

		if err := json.Unmarshal(data, &rc); err != nil {
			return fmt.Errorf("%w: %v", persistence.ErrStateCorrupt, err)
		}

		if err := fn(&rc); err != nil {
			return err
		}

		rc.UpdatedAt = time.Now().UTC()
		rc.Version++

		out, err := json.Marshal(&rc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, runKey(runID), out, 0)

			return nil
		})
		if err != nil {
			return err
		}

		updated = &rc

		return nil
	}

	if err := s.client.Watch(ctx, txn, runKey(runID)); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, persistence.NewRunError(op, runID, persistence.ErrRunConflict)
		}

		return nil, persistence.NewRunError(op, runID, err)
	}

	return updated, nil
}

// StartStep inserts or overwrites a running step result with a fresh start
// timestamp; the cursor is untouched.
func (s *Store) StartStep(ctx context.Context, runID, stepName string) (*models.RunContext, error) {
	return s.mutate(ctx, "StartStep", runID, func(rc *models.RunContext) error {
		rc.StepResults[stepName] = &models.StepResult{
			StepName:   stepName,
			Status:     models.StepStatusRunning,
			StartedAt:  time.Now().UTC(),
			OutputData: map[string]models.Value{},
		}

		// A retry after a failure un-parks the run.
		if rc.Status == models.RunStatusFailed {
			rc.Status = models.RunStatusRunning
		}

		return nil
	})
}

// CompleteStep marks the step completed, merges outputs, stores the fragment,
// and advances the cursor by exactly one.
func (s *Store) CompleteStep(ctx context.Context, runID, stepName string, outputData map[string]models.Value, fragmentHTML string) (*models.RunContext, error) {
	return s.mutate(ctx, "CompleteStep", runID, func(rc *models.RunContext) error {
		now := time.Now().UTC()

		result, ok := rc.StepResults[stepName]
		if !ok {
			result = &models.StepResult{
				StepName:  stepName,
				StartedAt: now,
			}
			rc.StepResults[stepName] = result
		}

		result.Status = models.StepStatusCompleted
		result.CompletedAt = &now

		if outputData == nil {
			outputData = map[string]models.Value{}
		}

		result.OutputData = outputData

		if fragmentHTML != "" {
			index := len(rc.HTMLFragments) + 1
			name := fmt.Sprintf("%02d_%s.html", index, stepName)
			path := filepath.Join(s.FragmentDir(runID), name)

			if err := os.WriteFile(path, []byte(fragmentHTML), 0600); err != nil {
				return fmt.Errorf("failed to write fragment %s: %w", name, err)
			}

			result.FragmentPath = path
			rc.HTMLFragments = append(rc.HTMLFragments, path)
		}

		rc.GlobalData = models.MergeValues(rc.GlobalData, outputData)

		rc.CurrentStepIndex++
		if rc.CurrentStepIndex >= len(rc.Steps) {
			rc.Status = models.RunStatusCompleted
		}

		return nil
	})
}

// FailStep marks the step and the run failed without moving the cursor.
func (s *Store) FailStep(ctx context.Context, runID, stepName, errMsg string) (*models.RunContext, error) {
	return s.mutate(ctx, "FailStep", runID, func(rc *models.RunContext) error {
		now := time.Now().UTC()

		result, ok := rc.StepResults[stepName]
		if !ok {
			result = &models.StepResult{
				StepName:   stepName,
				StartedAt:  now,
				OutputData: map[string]models.Value{},
			}
			rc.StepResults[stepName] = result
		}

		result.Status = models.StepStatusFailed
		result.CompletedAt = &now
		result.Error = errMsg

		rc.Status = models.RunStatusFailed

		return nil
	})
}

// Cancel marks the run cancelled.
func (s *Store) Cancel(ctx context.Context, runID string) (*models.RunContext, error) {
	return s.mutate(ctx, "Cancel", runID, func(rc *models.RunContext) error {
		if rc.Status == models.RunStatusCompleted || rc.Status == models.RunStatusFailed {
			return fmt.Errorf("cannot cancel run in status %s", rc.Status)
		}

		rc.Status = models.RunStatusCancelled

		return nil
	})
}

// GetGlobalData reads one key from the shared data bag.
func (s *Store) GetGlobalData(ctx context.Context, runID, key string, def models.Value) (models.Value, error) {
	rc, err := s.Load(ctx, runID)
	if err != nil {
		return def, err
	}

	if v, ok := rc.GlobalData[key]; ok {
		return v, nil
	}

	return def, nil
}

// SetGlobalData writes one key into the shared data bag.
func (s *Store) SetGlobalData(ctx context.Context, runID, key string, value models.Value) error {
	_, err := s.mutate(ctx, "SetGlobalData", runID, func(rc *models.RunContext) error {
		rc.GlobalData[key] = value

		return nil
	})

	return err
}

// SetOutputPath records the final document location.
func (s *Store) SetOutputPath(ctx context.Context, runID, path string) error {
	_, err := s.mutate(ctx, "SetOutputPath", runID, func(rc *models.RunContext) error {
		rc.OutputPath = path

		return nil
	})

	return err
}

// NextStepInfo returns the derived progression view.
func (s *Store) NextStepInfo(ctx context.Context, runID string) (*persistence.NextStepInfo, error) {
	rc, err := s.Load(ctx, runID)
	if err != nil {
		return nil, err
	}

	return persistence.BuildNextStepInfo(rc), nil
}

// ListRuns returns summaries of all persisted runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]persistence.RunSummary, error) {
	ids, err := s.client.SMembers(ctx, runIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	summaries := make([]persistence.RunSummary, 0, len(ids))

	for _, id := range ids {
		rc, err := s.Load(ctx, id)
		if err != nil {
			// Skip index entries whose document is gone or unreadable.
			continue
		}

		summaries = append(summaries, persistence.RunSummary{
			RunID:        rc.RunID,
			WorkflowType: rc.WorkflowType,
			Status:       rc.Status,
			CreatedAt:    rc.CreatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	return summaries, nil
}

// HealthCheck pings the Redis server.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}
