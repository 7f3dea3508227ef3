package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dd0wney/cluso-coord/pkg/clock"
	"github.com/dd0wney/cluso-coord/pkg/database"
	"github.com/dd0wney/cluso-coord/pkg/logging"
)

// PGStore keeps heartbeats in the cluster_node_heartbeat table
type PGStore struct {
	db        database.DBTX
	times     database.TimeReader
	refresher MembershipRefresher
	logger    logging.Logger
}

// NewPGStore creates a PostgreSQL-backed heartbeat store. refresher may be nil.
func NewPGStore(db database.DBTX, times database.TimeReader, refresher MembershipRefresher, logger logging.Logger) *PGStore {
	return &PGStore{
		db:        db,
		times:     times,
		refresher: refresher,
		logger:    logging.OrNop(logger).With(logging.Component("heartbeat-store")),
	}
}

// WriteHeartbeat implements Store
func (s *PGStore) WriteHeartbeat(ctx context.Context, nodeID string, localTime time.Time) error {
	if nodeID == "" {
		return ErrEmptyNodeID
	}

	dbTime, err := s.times.DatabaseTime(ctx)
	if err != nil {
		return fmt.Errorf("heartbeat of %s: %w", nodeID, err)
	}

	update := `
		UPDATE cluster_node_heartbeat
		SET heartbeat_time = $2, database_time = $3
		WHERE node_id = $1
	`

	result, err := s.db.Exec(ctx, update, nodeID, clock.Millis(localTime), clock.Millis(dbTime))
	if err != nil {
		return fmt.Errorf("failed to update heartbeat of %s: %w", nodeID, err)
	}

	switch n := result.RowsAffected(); n {
	case 0:
		// First heartbeat of this node
		insert := `
			INSERT INTO cluster_node_heartbeat (node_id, heartbeat_time, database_time)
			VALUES ($1, $2, $3)
		`
		if _, err := s.db.Exec(ctx, insert, nodeID, clock.Millis(localTime), clock.Millis(dbTime)); err != nil {
			return fmt.Errorf("failed to insert heartbeat of %s: %w", nodeID, err)
		}
	case 1:
	default:
		return fmt.Errorf("%w: node %s, %d rows", ErrTooManyRows, nodeID, n)
	}

	refreshMembership(ctx, s.refresher, s.logger)
	return nil
}

// GetLastHeartbeatTime implements Store
func (s *PGStore) GetLastHeartbeatTime(ctx context.Context, nodeID string) (*time.Time, error) {
	var ms int64
	err := s.db.QueryRow(ctx,
		`SELECT heartbeat_time FROM cluster_node_heartbeat WHERE node_id = $1`, nodeID).Scan(&ms)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get heartbeat of %s: %w", nodeID, err)
	}

	t := clock.FromMillis(ms)
	return &t, nil
}

// GetActiveNodesDatabaseTimeOffsets implements Store
func (s *PGStore) GetActiveNodesDatabaseTimeOffsets(ctx context.Context, threshold time.Time) (map[string]*time.Duration, error) {
	query := `
		SELECT node_id, heartbeat_time, database_time
		FROM cluster_node_heartbeat
		WHERE database_time > $1 OR database_time IS NULL
	`

	rows, err := s.queryRows(ctx, query, clock.Millis(threshold))
	if err != nil {
		return nil, fmt.Errorf("failed to get clock offsets: %w", err)
	}

	offsets := make(map[string]*time.Duration, len(rows))
	for _, row := range rows {
		offsets[row.NodeID] = row.Offset()
	}
	return offsets, nil
}

// FindNodesWithHeartbeatsAfter implements Store
func (s *PGStore) FindNodesWithHeartbeatsAfter(ctx context.Context, after time.Time) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx,
		`SELECT node_id FROM cluster_node_heartbeat WHERE heartbeat_time > $1`, clock.Millis(after))
	if err != nil {
		return nil, fmt.Errorf("failed to find live nodes: %w", err)
	}
	defer rows.Close()

	nodes := make(map[string]struct{})
	for rows.Next() {
		var nodeID string
		if err := rows.Scan(&nodeID); err != nil {
			return nil, fmt.Errorf("failed to scan node id: %w", err)
		}
		nodes[nodeID] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating live nodes: %w", err)
	}
	return nodes, nil
}

// ListHeartbeats implements Store
func (s *PGStore) ListHeartbeats(ctx context.Context) ([]Row, error) {
	query := `
		SELECT node_id, heartbeat_time, database_time
		FROM cluster_node_heartbeat
		ORDER BY node_id
	`

	rows, err := s.queryRows(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list heartbeats: %w", err)
	}
	return rows, nil
}

func (s *PGStore) queryRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			row       Row
			heartbeat int64
			dbTime    *int64
		)
		if err := rows.Scan(&row.NodeID, &heartbeat, &dbTime); err != nil {
			return nil, err
		}
		row.HeartbeatTime = clock.FromMillis(heartbeat)
		if dbTime != nil {
			t := clock.FromMillis(*dbTime)
			row.DatabaseTime = &t
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// refreshMembership runs after a heartbeat is durable. A failed refresh leaves
// a stale cache until the next tick, so it does not fail the heartbeat.
func refreshMembership(ctx context.Context, refresher MembershipRefresher, logger logging.Logger) {
	if refresher == nil {
		return
	}
	if err := refresher.RefreshLiveNodes(ctx); err != nil {
		logger.Warn("membership refresh after heartbeat failed", logging.Error(err))
	}
}
