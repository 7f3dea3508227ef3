package lockstore

import (
	"context"
	"time"
)

// LockRow is the persisted holder state of one named lock
type LockRow struct {
	Name string
	// LockedBy is the holding node id, empty when the lock is free
	LockedBy   string
	UpdateTime time.Time
}

// IsLocked reports whether some node holds the lock
func (r LockRow) IsLocked() bool {
	return r.LockedBy != ""
}

// Store is the lock table
type Store interface {
	// GetStatus returns the row for name, or nil if it does not exist
	GetStatus(ctx context.Context, name string) (*LockRow, error)
	// TryAcquire sets the holder to nodeID if the lock is free. It returns
	// false, not an error, when another node holds it.
	TryAcquire(ctx context.Context, name, nodeID string, at time.Time) (bool, error)
	// InsertIfAbsent creates an unlocked row; a concurrent creator winning
	// the race is not an error.
	InsertIfAbsent(ctx context.Context, name string, at time.Time) error
	// Release frees the lock if nodeID holds it and fails with ErrNotOwner
	// otherwise.
	Release(ctx context.Context, name, nodeID string, at time.Time) error
	// DeleteLocksHeldBy removes every row held by nodeID and returns how
	// many rows were removed
	DeleteLocksHeldBy(ctx context.Context, nodeID string) (int64, error)
	// ListLocks returns all rows ordered by name
	ListLocks(ctx context.Context) ([]LockRow, error)
}
