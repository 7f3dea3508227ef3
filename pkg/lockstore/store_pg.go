package lockstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dd0wney/cluso-coord/pkg/clock"
	"github.com/dd0wney/cluso-coord/pkg/database"
)

// PGStore keeps locks in the cluster_lock table
type PGStore struct {
	db database.DBTX
}

// NewPGStore creates a PostgreSQL-backed lock store. The schema must already
// exist (see database.Migrate).
func NewPGStore(db database.DBTX) *PGStore {
	return &PGStore{db: db}
}

// GetStatus implements Store
func (s *PGStore) GetStatus(ctx context.Context, name string) (*LockRow, error) {
	query := `
		SELECT lock_name, locked_by_node, update_time
		FROM cluster_lock
		WHERE lock_name = $1
	`

	var (
		row      LockRow
		lockedBy *string
		updated  int64
	)
	err := s.db.QueryRow(ctx, query, name).Scan(&row.Name, &lockedBy, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lock %s: %w", name, err)
	}

	if lockedBy != nil {
		row.LockedBy = *lockedBy
	}
	row.UpdateTime = clock.FromMillis(updated)
	return &row, nil
}

// TryAcquire implements Store
func (s *PGStore) TryAcquire(ctx context.Context, name, nodeID string, at time.Time) (bool, error) {
	if nodeID == "" {
		return false, ErrEmptyNodeID
	}

	query := `
		UPDATE cluster_lock
		SET locked_by_node = $2, update_time = $3
		WHERE lock_name = $1 AND locked_by_node IS NULL
	`

	result, err := s.db.Exec(ctx, query, name, nodeID, clock.Millis(at))
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}

	switch n := result.RowsAffected(); n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: acquire of %s by %s changed %d rows", ErrTooManyRows, name, nodeID, n)
	}
}

// InsertIfAbsent implements Store
func (s *PGStore) InsertIfAbsent(ctx context.Context, name string, at time.Time) error {
	if name == "" {
		return ErrEmptyLockName
	}

	query := `
		INSERT INTO cluster_lock (lock_name, locked_by_node, update_time)
		VALUES ($1, NULL, $2)
	`

	_, err := s.db.Exec(ctx, query, name, clock.Millis(at))
	if err == nil {
		return nil
	}
	if !database.IsUniqueViolation(err) {
		return fmt.Errorf("failed to create lock %s: %w", name, err)
	}

	// Lost the creation race to another node; confirm its row is there.
	existing, getErr := s.GetStatus(ctx, name)
	if getErr == nil && existing != nil {
		return nil
	}
	return fmt.Errorf("failed to create lock %s: %w", name, err)
}

// Release implements Store
func (s *PGStore) Release(ctx context.Context, name, nodeID string, at time.Time) error {
	query := `
		UPDATE cluster_lock
		SET locked_by_node = NULL, update_time = $3
		WHERE lock_name = $1 AND locked_by_node = $2
	`

	result, err := s.db.Exec(ctx, query, name, nodeID, clock.Millis(at))
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}

	switch n := result.RowsAffected(); n {
	case 0:
		return fmt.Errorf("%w: lock %s, node %s", ErrNotOwner, name, nodeID)
	case 1:
		return nil
	default:
		return fmt.Errorf("%w: release of %s by %s changed %d rows", ErrTooManyRows, name, nodeID, n)
	}
}

// DeleteLocksHeldBy implements Store
func (s *PGStore) DeleteLocksHeldBy(ctx context.Context, nodeID string) (int64, error) {
	result, err := s.db.Exec(ctx, `DELETE FROM cluster_lock WHERE locked_by_node = $1`, nodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete locks held by %s: %w", nodeID, err)
	}
	return result.RowsAffected(), nil
}

// ListLocks implements Store
func (s *PGStore) ListLocks(ctx context.Context) ([]LockRow, error) {
	query := `
		SELECT lock_name, locked_by_node, update_time
		FROM cluster_lock
		ORDER BY lock_name
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	defer rows.Close()

	var locks []LockRow
	for rows.Next() {
		var (
			row      LockRow
			lockedBy *string
			updated  int64
		)
		if err := rows.Scan(&row.Name, &lockedBy, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan lock: %w", err)
		}
		if lockedBy != nil {
			row.LockedBy = *lockedBy
		}
		row.UpdateTime = clock.FromMillis(updated)
		locks = append(locks, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locks: %w", err)
	}

	return locks, nil
}
