package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/coordflow/state"
)

// MemorySnapshotStore is an in-memory implementation of SnapshotStore.
// Suitable for development and testing. Snapshots are stored serialized so
// callers cannot alias the stored state.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	closed    bool
}

// NewMemorySnapshotStore creates a new in-memory snapshot store
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snapshots: make(map[string][]byte)}
}

// SaveSnapshot persists a run's state.
func (s *MemorySnapshotStore) SaveSnapshot(ctx context.Context, runID string, st *state.State) error {
	if runID == "" || st == nil {
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
	s.snapshots[runID] = data
	return nil
}

// LoadSnapshot returns the stored state for a run.
func (s *MemorySnapshotStore) LoadSnapshot(ctx context.Context, runID string) (*state.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	data, ok := s.snapshots[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Unmarshal(data)
}

// DeleteSnapshot removes a run's snapshot.
func (s *MemorySnapshotStore) DeleteSnapshot(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.snapshots, runID)
	return nil
}

// ListRuns returns the ids of all stored runs, sorted.
func (s *MemorySnapshotStore) ListRuns(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	runs := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		runs = append(runs, id)
	}
	sort.Strings(runs)
	return runs, nil
}

// Close closes the store.
func (s *MemorySnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy.
func (s *MemorySnapshotStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}
