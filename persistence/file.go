package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BaSui01/coordflow/state"
)

// FileSnapshotStore is a file-based implementation of SnapshotStore.
// Suitable for single-node production deployments. Each run's snapshot is one
// JSON file under BaseDir; writes go through a temp file and rename so a
// crash never leaves a half-written snapshot behind.
type FileSnapshotStore struct {
	baseDir string
	mu      sync.Mutex
	closed  bool
}

// NewFileSnapshotStore creates a file-backed snapshot store rooted at
// cfg.BaseDir.
func NewFileSnapshotStore(cfg Config) (*FileSnapshotStore, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("file snapshot store: %w: empty base dir", ErrInvalidInput)
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileSnapshotStore{baseDir: cfg.BaseDir}, nil
}

func (s *FileSnapshotStore) path(runID string) string {
	return filepath.Join(s.baseDir, runID+".json")
}

func validRunID(runID string) bool {
	return runID != "" && !strings.ContainsAny(runID, `/\`) && runID != "." && runID != ".."
}

// SaveSnapshot persists a run's state atomically.
func (s *FileSnapshotStore) SaveSnapshot(ctx context.Context, runID string, st *state.State) error {
	if !validRunID(runID) || st == nil {
		return ErrInvalidInput
	}
	data, err := st.Marshal()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	tmp := s.path(runID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path(runID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored state for a run.
func (s *FileSnapshotStore) LoadSnapshot(ctx context.Context, runID string) (*state.State, error) {
	if !validRunID(runID) {
		return nil, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return state.Unmarshal(data)
}

// DeleteSnapshot removes a run's snapshot file.
func (s *FileSnapshotStore) DeleteSnapshot(ctx context.Context, runID string) error {
	if !validRunID(runID) {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if err := os.Remove(s.path(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// ListRuns scans BaseDir for snapshot files.
func (s *FileSnapshotStore) ListRuns(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	runs := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		runs = append(runs, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(runs)
	return runs, nil
}

// Close closes the store.
func (s *FileSnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks the base directory is still accessible.
func (s *FileSnapshotStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrStoreClosed
	}
	_, err := os.Stat(s.baseDir)
	return err
}
