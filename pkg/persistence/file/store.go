// Package file provides file-based persistence for workflow runs. Each run
// owns one directory under the store root:
//
//	<root>/<run_id>/
//	├── state.json   state document
//	├── fragments/   rendered report fragments, in production order
//	└── report.html  final assembled document
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/persistence"
)

const stateFileName = "state.json"

// Store implements persistence.StateStore on the local file system.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a file store rooted at the given directory. Accepts a plain
// path or a file:// URL.
func NewStore(root string) *Store {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Store{
		root:  cleanRoot,
		locks: make(map[string]*sync.Mutex),
	}
}

// runLock returns the per-run mutex, creating it on first use. The lock
// serializes load-mutate-save cycles within this process; the version check in
// save covers mutations from other processes.
func (s *Store) runLock(runID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[runID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[runID] = lock
	}

	return lock
}

func validateRunID(runID string) error {
	if runID == "" {
		return errors.New("run ID cannot be empty")
	}

	if strings.Contains(runID, "..") || strings.ContainsAny(runID, `/\`) {
		return errors.New("run ID contains invalid characters")
	}

	return nil
}

// RunDir returns the directory that holds the run's state and artifacts.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.root, runID)
}

// FragmentDir returns the directory where the run's rendered fragments live.
func (s *Store) FragmentDir(runID string) string {
	return filepath.Join(s.RunDir(runID), "fragments")
}

func (s *Store) statePath(runID string) string {
	return filepath.Join(s.RunDir(runID), stateFileName)
}

// Exists reports whether persisted state is present for the run.
func (s *Store) Exists(_ context.Context, runID string) (bool, error) {
	if err := validateRunID(runID); err != nil {
		return false, persistence.NewRunError("Exists", runID, err)
	}

	_, err := os.Stat(s.statePath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, persistence.NewRunError("Exists", runID, err)
	}

	return true, nil
}

// Create writes a fresh running context and its directory layout. Fails with
// ErrRunAlreadyExists when a state document is already present.
func (s *Store) Create(ctx context.Context, runID, workflowType string, params map[string]models.Value, steps []string) (*models.RunContext, error) {
	if err := validateRunID(runID); err != nil {
		return nil, persistence.NewRunError("Create", runID, err)
	}

	lock := s.runLock(runID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(s.statePath(runID)); err == nil {
		return nil, persistence.NewRunError("Create", runID, persistence.ErrRunAlreadyExists)
	}

	if err := os.MkdirAll(s.FragmentDir(runID), 0750); err != nil {
		return nil, persistence.NewRunError("Create", runID, fmt.Errorf("failed to create run directory: %w", err))
	}

	rc := models.NewRunContext(runID, workflowType, params, steps, time.Now().UTC())

	if err := s.save(rc, 0); err != nil {
		return nil, persistence.NewRunError("Create", runID, err)
	}

	return rc, nil
}

// Load deserializes the persisted state document.
func (s *Store) Load(_ context.Context, runID string) (*models.RunContext, error) {
	if err := validateRunID(runID); err != nil {
		return nil, persistence.NewRunError("Load", runID, err)
	}

	return s.load(runID)
}

func (s *Store) load(runID string) (*models.RunContext, error) {
	data, err := os.ReadFile(s.statePath(runID)) // #nosec G304 -- run ID is validated
	if err != nil {
		if os.IsNotExist(err) {
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

// save persists the context all-or-nothing via a temp file and rename. The
// expectedVersion is the version the mutation loaded; a differing version on
// disk means another process got there first. Pass 0 for initial creation.
func (s *Store) save(rc *models.RunContext, expectedVersion int64) error {
	if expectedVersion > 0 {
		current, err := s.load(rc.RunID)
		if err != nil {
			return err
		}

		if current.Version != expectedVersion {
			return persistence.ErrRunConflict
		}
	}

	rc.Version = expectedVersion + 1

	data, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	tmp, err := os.CreateTemp(s.RunDir(rc.RunID), stateFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.statePath(rc.RunID)); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

// mutate runs one load-mutate-save cycle under the per-run lock.
func (s *Store) mutate(op, runID string, fn func(rc *models.RunContext) error) (*models.RunContext, error) {
	if err := validateRunID(runID); err != nil {
		return nil, persistence.NewRunError(op, runID, err)
	}

	lock := s.runLock(runID)
	lock.Lock()
	defer lock.Unlock()

	rc, err := s.load(runID)
	if err != nil {
		var runErr *persistence.RunError
		if errors.As(err, &runErr) {
			runErr.Op = op
		}

		return nil, err
	}

	loadedVersion := rc.Version

	if err := fn(rc); err != nil {
		return nil, persistence.NewRunError(op, runID, err)
	}

	rc.UpdatedAt = time.Now().UTC()

	if err := s.save(rc, loadedVersion); err != nil {
		return nil, persistence.NewRunError(op, runID, err)
	}

	return rc, nil
}

// StartStep inserts or overwrites a running step result with a fresh start
// timestamp. A stale running record from a crashed invocation is reset; the
// cursor is untouched.
func (s *Store) StartStep(_ context.Context, runID, stepName string) (*models.RunContext, error) {
	return s.mutate("StartStep", runID, func(rc *models.RunContext) error {
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

// CompleteStep marks the step completed, merges its outputs into global data,
// writes the fragment when one was rendered, and advances the cursor by
// exactly one. The run becomes completed when the cursor reaches the end of
// the step list. One atomic persisted update.
func (s *Store) CompleteStep(_ context.Context, runID, stepName string, outputData map[string]models.Value, fragmentHTML string) (*models.RunContext, error) {
	return s.mutate("CompleteStep", runID, func(rc *models.RunContext) error {
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
			path, err := s.writeFragment(rc, stepName, fragmentHTML)
			if err != nil {
				return err
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

// writeFragment stores one rendered fragment. File names are numbered in
// arrival order so the assembler can concatenate lexically.
func (s *Store) writeFragment(rc *models.RunContext, stepName, html string) (string, error) {
	index := len(rc.HTMLFragments) + 1
	name := fmt.Sprintf("%02d_%s.html", index, stepName)
	path := filepath.Join(s.FragmentDir(rc.RunID), name)

	if err := os.WriteFile(path, []byte(html), 0600); err != nil {
		return "", fmt.Errorf("failed to write fragment %s: %w", name, err)
	}

	return path, nil
}

// FailStep marks the step and the run failed. The cursor does not move, so a
// retry resumes from the same step after the caller fixes the underlying
// condition.
func (s *Store) FailStep(_ context.Context, runID, stepName, errMsg string) (*models.RunContext, error) {
	return s.mutate("FailStep", runID, func(rc *models.RunContext) error {
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

// Cancel marks the run cancelled. Nothing in flight is interrupted; further
// steps are simply no longer accepted.
func (s *Store) Cancel(_ context.Context, runID string) (*models.RunContext, error) {
	return s.mutate("Cancel", runID, func(rc *models.RunContext) error {
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

// SetGlobalData writes one key into the shared data bag with immediate
// persistence.
func (s *Store) SetGlobalData(_ context.Context, runID, key string, value models.Value) error {
	_, err := s.mutate("SetGlobalData", runID, func(rc *models.RunContext) error {
		rc.GlobalData[key] = value

		return nil
	})

	return err
}

// SetOutputPath records the final document location. This is the only
// mutation accepted after the run reaches a terminal status.
func (s *Store) SetOutputPath(_ context.Context, runID, path string) error {
	_, err := s.mutate("SetOutputPath", runID, func(rc *models.RunContext) error {
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
func (s *Store) ListRuns(_ context.Context) ([]persistence.RunSummary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []persistence.RunSummary{}, nil
		}

		return nil, fmt.Errorf("failed to read store root: %w", err)
	}

	summaries := make([]persistence.RunSummary, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		rc, err := s.load(entry.Name())
		if err != nil {
			// Skip directories without a readable state document.
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

// HealthCheck verifies the store root exists.
func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to release for files.
func (s *Store) Close(_ context.Context) error {
	return nil
}
