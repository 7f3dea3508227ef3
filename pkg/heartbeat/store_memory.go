package heartbeat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dd0wney/cluso-coord/pkg/database"
	"github.com/dd0wney/cluso-coord/pkg/logging"
)

// MemoryStore is a process-local Store with the same upsert and query
// semantics as PGStore. The "database" clock is whatever times reports.
type MemoryStore struct {
	mu        sync.Mutex
	rows      map[string]Row
	times     database.TimeReader
	refresher MembershipRefresher
	logger    logging.Logger
}

// NewMemoryStore creates an empty store. refresher may be nil.
func NewMemoryStore(times database.TimeReader, refresher MembershipRefresher, logger logging.Logger) *MemoryStore {
	return &MemoryStore{
		rows:      make(map[string]Row),
		times:     times,
		refresher: refresher,
		logger:    logging.OrNop(logger).With(logging.Component("heartbeat-store")),
	}
}

// Put stores a row as-is, including a nil database time
func (s *MemoryStore) Put(row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.NodeID] = row
}

// WriteHeartbeat implements Store
func (s *MemoryStore) WriteHeartbeat(ctx context.Context, nodeID string, localTime time.Time) error {
	if nodeID == "" {
		return ErrEmptyNodeID
	}

	dbTime, err := s.times.DatabaseTime(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.rows[nodeID] = Row{NodeID: nodeID, HeartbeatTime: localTime, DatabaseTime: &dbTime}
	s.mu.Unlock()

	refreshMembership(ctx, s.refresher, s.logger)
	return nil
}

// GetLastHeartbeatTime implements Store
func (s *MemoryStore) GetLastHeartbeatTime(ctx context.Context, nodeID string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[nodeID]
	if !ok {
		return nil, nil
	}
	t := row.HeartbeatTime
	return &t, nil
}

// GetActiveNodesDatabaseTimeOffsets implements Store
func (s *MemoryStore) GetActiveNodesDatabaseTimeOffsets(ctx context.Context, threshold time.Time) (map[string]*time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offsets := make(map[string]*time.Duration)
	for id, row := range s.rows {
		if row.DatabaseTime == nil || row.DatabaseTime.After(threshold) {
			offsets[id] = row.Offset()
		}
	}
	return offsets, nil
}

// FindNodesWithHeartbeatsAfter implements Store
func (s *MemoryStore) FindNodesWithHeartbeatsAfter(ctx context.Context, after time.Time) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make(map[string]struct{})
	for id, row := range s.rows {
		if row.HeartbeatTime.After(after) {
			nodes[id] = struct{}{}
		}
	}
	return nodes, nil
}

// ListHeartbeats implements Store
func (s *MemoryStore) ListHeartbeats(ctx context.Context) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]Row, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].NodeID < rows[j].NodeID })
	return rows, nil
}
