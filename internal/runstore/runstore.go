// Package runstore persists Run records: one JSON document per run under
// DATA_DIR/runs/<runId>.json, written atomically via a temp-file-then-
// rename, the same discipline internal/embedindex.Index uses for its
// single shared document. Runs are small (one file per run, not a
// database), so a per-run file is both simpler and gives free
// concurrency across runs - two runs never contend on the same file.
package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kilnrun/kiln/internal/ids"
)

// Store manages Run documents under a root directory.
type Store struct {
	dir string
	mu  sync.Mutex // serializes writes to a single process's view; cross-process safety comes from the atomic rename
}

func New(dataDir string) *Store {
	return &Store{dir: filepath.Join(dataDir, "runs")}
}

func (s *Store) pathFor(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

// Create starts a new run and persists its initial empty state.
func (s *Store) Create(task string) (*Run, error) {
	now := time.Now()
	run := &Run{
		ID:        ids.NewRunID(),
		Task:      task,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Load reads a run by ID.
func (s *Store) Load(runID string) (*Run, error) {
	raw, err := os.ReadFile(s.pathFor(runID))
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", runID, err)
	}
	var run Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("unmarshaling run %s: %w", runID, err)
	}
	return &run, nil
}

// Save persists a run's full current state atomically. AppendStep is the
// usual write path during a run; Save is exposed directly for status
// transitions (done/failed/paused) and for Create.
func (s *Store) Save(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.UpdatedAt = time.Now()
	raw, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run %s: %w", run.ID, err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating run store directory: %w", err)
	}
	path := s.pathFor(run.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("writing temp run file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming run file: %w", err)
	}
	return nil
}

// AppendStep adds a step to run's history and persists the result. The
// step's Index is set from the run's current length, so callers don't
// need to track it themselves.
func (s *Store) AppendStep(run *Run, step Step) error {
	step.Index = len(run.Steps)
	run.Steps = append(run.Steps, step)
	return s.Save(run)
}

// Complete marks a run finished with its final answer.
func (s *Store) Complete(run *Run, answer string) error {
	run.Status = StatusDone
	run.FinalAnswer = answer
	return s.Save(run)
}

// Fail marks a run as having ended in error. The error itself should
// already be recorded on the last Step; Fail just flips the run's
// terminal status.
func (s *Store) Fail(run *Run) error {
	run.Status = StatusFailed
	return s.Save(run)
}

// Pause marks a run stopped for human attention - it hit its step budget,
// a tool call was denied, or the process was interrupted - without
// treating that as a failure. Paused runs remain resumable.
func (s *Store) Pause(run *Run) error {
	run.Status = StatusPaused
	return s.Save(run)
}

// List returns every run ID with a persisted document, most recently
// updated first is not guaranteed - callers needing that should Load
// each and sort on UpdatedAt.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing run store directory: %w", err)
	}
	var runIDs []string
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) == ".json" {
			runIDs = append(runIDs, name[:len(name)-len(".json")])
		}
	}
	return runIDs, nil
}
