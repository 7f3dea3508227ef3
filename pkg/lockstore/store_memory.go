package lockstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. It backs the lock service when
// clustering is disabled, where a single process is the whole cluster, and
// applies the same conditional semantics as PGStore under one mutex.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]*LockRow
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[string]*LockRow)}
}

// GetStatus implements Store
func (s *MemoryStore) GetStatus(ctx context.Context, name string) (*LockRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.locks[name]
	if !ok {
		return nil, nil
	}
	rowCopy := *row
	return &rowCopy, nil
}

// TryAcquire implements Store
func (s *MemoryStore) TryAcquire(ctx context.Context, name, nodeID string, at time.Time) (bool, error) {
	if nodeID == "" {
		return false, ErrEmptyNodeID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.locks[name]
	if !ok || row.IsLocked() {
		return false, nil
	}
	row.LockedBy = nodeID
	row.UpdateTime = at
	return true, nil
}

// InsertIfAbsent implements Store
func (s *MemoryStore) InsertIfAbsent(ctx context.Context, name string, at time.Time) error {
	if name == "" {
		return ErrEmptyLockName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locks[name]; !ok {
		s.locks[name] = &LockRow{Name: name, UpdateTime: at}
	}
	return nil
}

// Release implements Store
func (s *MemoryStore) Release(ctx context.Context, name, nodeID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.locks[name]
	if !ok || row.LockedBy != nodeID || nodeID == "" {
		return fmt.Errorf("%w: lock %s, node %s", ErrNotOwner, name, nodeID)
	}
	row.LockedBy = ""
	row.UpdateTime = at
	return nil
}

// DeleteLocksHeldBy implements Store
func (s *MemoryStore) DeleteLocksHeldBy(ctx context.Context, nodeID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for name, row := range s.locks {
		if row.IsLocked() && row.LockedBy == nodeID {
			delete(s.locks, name)
			deleted++
		}
	}
	return deleted, nil
}

// ListLocks implements Store
func (s *MemoryStore) ListLocks(ctx context.Context) ([]LockRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locks := make([]LockRow, 0, len(s.locks))
	for _, row := range s.locks {
		locks = append(locks, *row)
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].Name < locks[j].Name })
	return locks, nil
}
