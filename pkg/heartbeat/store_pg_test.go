package heartbeat

import (
	"context"
	"errors"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-coord/pkg/database"
)

var (
	updateHeartbeatSQL = regexp.QuoteMeta("UPDATE cluster_node_heartbeat") + "(?s).*" + regexp.QuoteMeta("WHERE node_id = $1")
	insertHeartbeatSQL = regexp.QuoteMeta("INSERT INTO cluster_node_heartbeat (node_id, heartbeat_time, database_time)")
	offsetsSQL         = regexp.QuoteMeta("WHERE database_time > $1 OR database_time IS NULL")
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) RefreshLiveNodes(context.Context) error {
	r.calls.Add(1)
	return r.err
}

func fixedDBTime(ms int64) database.TimeReader {
	return database.TimeReaderFunc(func(context.Context) (time.Time, error) {
		return time.UnixMilli(ms), nil
	})
}

func int64Ptr(v int64) *int64 { return &v }

func newMockStore(t *testing.T, times database.TimeReader, refresher MembershipRefresher) (*PGStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewPGStore(mock, times, refresher, nil), mock
}

func TestPGStoreFirstHeartbeatInserts(t *testing.T) {
	refresher := &countingRefresher{}
	store, mock := newMockStore(t, fixedDBTime(900), refresher)

	mock.ExpectExec(updateHeartbeatSQL).WithArgs("n1", int64(1000), int64(900)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(insertHeartbeatSQL).WithArgs("n1", int64(1000), int64(900)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.WriteHeartbeat(context.Background(), "n1", time.UnixMilli(1000)))
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestPGStoreLaterHeartbeatUpdates(t *testing.T) {
	refresher := &countingRefresher{}
	store, mock := newMockStore(t, fixedDBTime(1900), refresher)

	mock.ExpectExec(updateHeartbeatSQL).WithArgs("n1", int64(2000), int64(1900)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.WriteHeartbeat(context.Background(), "n1", time.UnixMilli(2000)))
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestPGStoreHeartbeatRowCountAnomaly(t *testing.T) {
	refresher := &countingRefresher{}
	store, mock := newMockStore(t, fixedDBTime(1), refresher)

	mock.ExpectExec(updateHeartbeatSQL).WithArgs("n1", int64(2), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	err := store.WriteHeartbeat(context.Background(), "n1", time.UnixMilli(2))
	assert.ErrorIs(t, err, ErrTooManyRows)
	assert.Equal(t, int32(0), refresher.calls.Load())
}

func TestPGStoreHeartbeatDatabaseTimeFailure(t *testing.T) {
	failing := database.TimeReaderFunc(func(context.Context) (time.Time, error) {
		return time.Time{}, errors.New("connection reset")
	})
	store, _ := newMockStore(t, failing, nil)

	err := store.WriteHeartbeat(context.Background(), "n1", time.UnixMilli(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPGStoreRefreshFailureDoesNotFailHeartbeat(t *testing.T) {
	refresher := &countingRefresher{err: errors.New("boom")}
	store, mock := newMockStore(t, fixedDBTime(1), refresher)

	mock.ExpectExec(updateHeartbeatSQL).WithArgs("n1", int64(2), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, store.WriteHeartbeat(context.Background(), "n1", time.UnixMilli(2)))
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestPGStoreGetLastHeartbeatTime(t *testing.T) {
	ctx := context.Background()

	t.Run("present", func(t *testing.T) {
		store, mock := newMockStore(t, fixedDBTime(0), nil)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT heartbeat_time FROM cluster_node_heartbeat")).
			WithArgs("n1").
			WillReturnRows(pgxmock.NewRows([]string{"heartbeat_time"}).AddRow(int64(1234)))

		got, err := store.GetLastHeartbeatTime(ctx, "n1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, time.UnixMilli(1234), *got)
	})

	t.Run("never heartbeated", func(t *testing.T) {
		store, mock := newMockStore(t, fixedDBTime(0), nil)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT heartbeat_time FROM cluster_node_heartbeat")).
			WithArgs("n9").WillReturnError(pgx.ErrNoRows)

		got, err := store.GetLastHeartbeatTime(ctx, "n9")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestPGStoreOffsets(t *testing.T) {
	store, mock := newMockStore(t, fixedDBTime(0), nil)

	// n3 (database_time 50) is filtered by the WHERE clause
	mock.ExpectQuery(offsetsSQL).WithArgs(int64(100)).
		WillReturnRows(pgxmock.NewRows([]string{"node_id", "heartbeat_time", "database_time"}).
			AddRow("n1", int64(1000), int64Ptr(500)).
			AddRow("n2", int64(900), (*int64)(nil)))

	offsets, err := store.GetActiveNodesDatabaseTimeOffsets(context.Background(), time.UnixMilli(100))
	require.NoError(t, err)
	require.Len(t, offsets, 2)
	require.NotNil(t, offsets["n1"])
	assert.Equal(t, 500*time.Millisecond, *offsets["n1"])
	n2, ok := offsets["n2"]
	assert.True(t, ok)
	assert.Nil(t, n2)
}

func TestPGStoreFindNodesWithHeartbeatsAfter(t *testing.T) {
	store, mock := newMockStore(t, fixedDBTime(0), nil)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE heartbeat_time > $1")).WithArgs(int64(5000)).
		WillReturnRows(pgxmock.NewRows([]string{"node_id"}).AddRow("n1").AddRow("n2"))

	nodes, err := store.FindNodesWithHeartbeatsAfter(context.Background(), time.UnixMilli(5000))
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"n1": {}, "n2": {}}, nodes)
}

func TestPGStoreListHeartbeats(t *testing.T) {
	store, mock := newMockStore(t, fixedDBTime(0), nil)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY node_id")).
		WillReturnRows(pgxmock.NewRows([]string{"node_id", "heartbeat_time", "database_time"}).
			AddRow("n1", int64(10), int64Ptr(8)).
			AddRow("n2", int64(20), (*int64)(nil)))

	rows, err := store.ListHeartbeats(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2*time.Millisecond, *rows[0].Offset())
	assert.Nil(t, rows[1].DatabaseTime)
	assert.Nil(t, rows[1].Offset())
}
