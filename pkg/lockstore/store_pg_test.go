package lockstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	selectLockSQL   = regexp.QuoteMeta("SELECT lock_name, locked_by_node, update_time") + "(?s).*" + regexp.QuoteMeta("WHERE lock_name = $1")
	acquireSQL      = regexp.QuoteMeta("SET locked_by_node = $2, update_time = $3") + "(?s).*" + regexp.QuoteMeta("locked_by_node IS NULL")
	insertSQL       = regexp.QuoteMeta("INSERT INTO cluster_lock (lock_name, locked_by_node, update_time)")
	releaseSQL      = regexp.QuoteMeta("SET locked_by_node = NULL, update_time = $3") + "(?s).*" + regexp.QuoteMeta("locked_by_node = $2")
	deleteByNodeSQL = regexp.QuoteMeta("DELETE FROM cluster_lock WHERE locked_by_node = $1")
)

func strPtr(s string) *string { return &s }

func newMockStore(t *testing.T) (*PGStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewPGStore(mock), mock
}

func lockColumns() []string {
	return []string{"lock_name", "locked_by_node", "update_time"}
}

func TestPGStoreGetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("held", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(selectLockSQL).WithArgs("reindex").
			WillReturnRows(pgxmock.NewRows(lockColumns()).AddRow("reindex", strPtr("node-a"), int64(1500)))

		row, err := store.GetStatus(ctx, "reindex")
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, "node-a", row.LockedBy)
		assert.True(t, row.IsLocked())
		assert.Equal(t, time.UnixMilli(1500), row.UpdateTime)
	})

	t.Run("free", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(selectLockSQL).WithArgs("reindex").
			WillReturnRows(pgxmock.NewRows(lockColumns()).AddRow("reindex", (*string)(nil), int64(10)))

		row, err := store.GetStatus(ctx, "reindex")
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.False(t, row.IsLocked())
	})

	t.Run("absent", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(selectLockSQL).WithArgs("missing").WillReturnError(pgx.ErrNoRows)

		row, err := store.GetStatus(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, row)
	})
}

func TestPGStoreTryAcquire(t *testing.T) {
	ctx := context.Background()
	at := time.UnixMilli(5000)

	tests := []struct {
		name     string
		affected int64
		want     bool
		wantErr  error
	}{
		{name: "won", affected: 1, want: true},
		{name: "already held", affected: 0, want: false},
		{name: "impossible row count", affected: 2, wantErr: ErrTooManyRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectExec(acquireSQL).WithArgs("reindex", "node-a", int64(5000)).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			got, err := store.TryAcquire(ctx, "reindex", "node-a", at)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.False(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPGStoreTryAcquireRejectsEmptyNode(t *testing.T) {
	store, _ := newMockStore(t)
	_, err := store.TryAcquire(context.Background(), "reindex", "", time.Now())
	assert.ErrorIs(t, err, ErrEmptyNodeID)
}

func TestPGStoreInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	at := time.UnixMilli(700)
	uniqueErr := &pgconn.PgError{Code: pgerrcode.UniqueViolation, Message: "duplicate key"}

	t.Run("inserted", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(insertSQL).WithArgs("reindex", int64(700)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.InsertIfAbsent(ctx, "reindex", at))
	})

	t.Run("lost creation race", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(insertSQL).WithArgs("reindex", int64(700)).WillReturnError(uniqueErr)
		mock.ExpectQuery(selectLockSQL).WithArgs("reindex").
			WillReturnRows(pgxmock.NewRows(lockColumns()).AddRow("reindex", (*string)(nil), int64(650)))

		require.NoError(t, store.InsertIfAbsent(ctx, "reindex", at))
	})

	t.Run("unique violation but row still absent", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(insertSQL).WithArgs("reindex", int64(700)).WillReturnError(uniqueErr)
		mock.ExpectQuery(selectLockSQL).WithArgs("reindex").WillReturnError(pgx.ErrNoRows)

		err := store.InsertIfAbsent(ctx, "reindex", at)
		require.Error(t, err)
		var pgErr *pgconn.PgError
		require.True(t, errors.As(err, &pgErr), "original error must be preserved")
		assert.Equal(t, pgerrcode.UniqueViolation, pgErr.Code)
	})

	t.Run("other failure is not rechecked", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(insertSQL).WithArgs("reindex", int64(700)).
			WillReturnError(errors.New("connection refused"))

		err := store.InsertIfAbsent(ctx, "reindex", at)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("empty name", func(t *testing.T) {
		store, _ := newMockStore(t)
		assert.ErrorIs(t, store.InsertIfAbsent(ctx, "", at), ErrEmptyLockName)
	})
}

func TestPGStoreRelease(t *testing.T) {
	ctx := context.Background()
	at := time.UnixMilli(9000)

	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "owner releases", affected: 1},
		{name: "not owner", affected: 0, wantErr: ErrNotOwner},
		{name: "impossible row count", affected: 3, wantErr: ErrTooManyRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectExec(releaseSQL).WithArgs("reindex", "node-a", int64(9000)).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err := store.Release(ctx, "reindex", "node-a", at)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPGStoreDeleteLocksHeldBy(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(deleteByNodeSQL).WithArgs("node-dead").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := store.DeleteLocksHeldBy(context.Background(), "node-dead")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPGStoreListLocks(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY lock_name")).
		WillReturnRows(pgxmock.NewRows(lockColumns()).
			AddRow("a", strPtr("node-a"), int64(1)).
			AddRow("b", (*string)(nil), int64(2)))

	locks, err := store.ListLocks(context.Background())
	require.NoError(t, err)
	require.Len(t, locks, 2)
	assert.Equal(t, LockRow{Name: "a", LockedBy: "node-a", UpdateTime: time.UnixMilli(1)}, locks[0])
	assert.Equal(t, LockRow{Name: "b", UpdateTime: time.UnixMilli(2)}, locks[1])
}
