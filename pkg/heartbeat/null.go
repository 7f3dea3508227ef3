package heartbeat

import (
	"context"
	"time"
)

// NonClusteredNodeID is the pseudo node id used when clustering is disabled
const NonClusteredNodeID = "standalone"

// NullStore is the Store of a non-clustered node. It persists nothing, reports
// no live peers and a zero offset for the pseudo node.
type NullStore struct{}

// WriteHeartbeat implements Store
func (NullStore) WriteHeartbeat(context.Context, string, time.Time) error { return nil }

// GetLastHeartbeatTime implements Store
func (NullStore) GetLastHeartbeatTime(context.Context, string) (*time.Time, error) { return nil, nil }

// GetActiveNodesDatabaseTimeOffsets implements Store
func (NullStore) GetActiveNodesDatabaseTimeOffsets(context.Context, time.Time) (map[string]*time.Duration, error) {
	var zero time.Duration
	return map[string]*time.Duration{NonClusteredNodeID: &zero}, nil
}

// FindNodesWithHeartbeatsAfter implements Store
func (NullStore) FindNodesWithHeartbeatsAfter(context.Context, time.Time) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

// ListHeartbeats implements Store
func (NullStore) ListHeartbeats(context.Context) ([]Row, error) { return nil, nil }

// NullService is the Service of a non-clustered node. It schedules no jobs.
type NullService struct {
	store NullStore
}

// NewNullService returns the non-clustered Service
func NewNullService() *NullService {
	return &NullService{}
}

// NodeID implements Service
func (*NullService) NodeID() string { return NonClusteredNodeID }

// IsClustered implements Service
func (*NullService) IsClustered() bool { return false }

// Schedule implements Service
func (*NullService) Schedule(JobScheduler) error { return nil }

// Beat implements Service
func (s *NullService) Beat(ctx context.Context) error {
	return s.store.WriteHeartbeat(ctx, NonClusteredNodeID, time.Time{})
}

// WriteSharedHomeStatus implements Service
func (*NullService) WriteSharedHomeStatus(context.Context) error { return nil }

// LiveNodes implements Service
func (s *NullService) LiveNodes(ctx context.Context) (map[string]struct{}, error) {
	return s.store.FindNodesWithHeartbeatsAfter(ctx, time.Time{})
}

// LastHeartbeatTime implements Service
func (s *NullService) LastHeartbeatTime(ctx context.Context, nodeID string) (*time.Time, error) {
	return s.store.GetLastHeartbeatTime(ctx, nodeID)
}

// ActiveNodesDatabaseTimeOffsets implements Service
func (s *NullService) ActiveNodesDatabaseTimeOffsets(ctx context.Context) (map[string]*time.Duration, error) {
	return s.store.GetActiveNodesDatabaseTimeOffsets(ctx, time.Time{})
}

// Depart implements Service
func (*NullService) Depart() {}

var (
	_ Store   = NullStore{}
	_ Service = (*NullService)(nil)
)
