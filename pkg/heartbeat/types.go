// Package heartbeat records node liveness in the shared database and answers
// liveness and clock-offset queries about the cluster.
//
// Every node upserts one row per heartbeat holding two timestamps: its own
// wall clock and the database server's clock read in the same tick. The pair
// lets any node compute every other node's clock offset against the single
// database clock without talking to its peers.
package heartbeat

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTooManyRows signals a heartbeat update that touched more than one
	// row, which only happens when the primary key is missing
	ErrTooManyRows = errors.New("heartbeat update affected more than one row")
	ErrEmptyNodeID = errors.New("node id cannot be empty")
)

// Row is one node's last recorded heartbeat
type Row struct {
	NodeID        string     `json:"node_id"`
	HeartbeatTime time.Time  `json:"heartbeat_time"`
	DatabaseTime  *time.Time `json:"database_time"` // nil until the first heartbeat that recorded it
}

// Offset is the node clock minus the database clock at the last heartbeat,
// or nil when the database time is unknown
func (r Row) Offset() *time.Duration {
	if r.DatabaseTime == nil {
		return nil
	}
	offset := r.HeartbeatTime.Sub(*r.DatabaseTime)
	return &offset
}

// Store persists heartbeat rows
type Store interface {
	// WriteHeartbeat records a heartbeat of nodeID taken at localTime, then
	// refreshes the in-process membership view
	WriteHeartbeat(ctx context.Context, nodeID string, localTime time.Time) error

	// GetLastHeartbeatTime returns nil if nodeID never heartbeated
	GetLastHeartbeatTime(ctx context.Context, nodeID string) (*time.Time, error)

	// GetActiveNodesDatabaseTimeOffsets returns the offset of every node whose
	// database time is after threshold. Nodes without a recorded database
	// time are included with a nil offset.
	GetActiveNodesDatabaseTimeOffsets(ctx context.Context, threshold time.Time) (map[string]*time.Duration, error)

	// FindNodesWithHeartbeatsAfter compares node-local heartbeat times
	FindNodesWithHeartbeatsAfter(ctx context.Context, after time.Time) (map[string]struct{}, error)

	// ListHeartbeats returns every row, ordered by node id
	ListHeartbeats(ctx context.Context) ([]Row, error)
}

// MembershipRefresher is told after every heartbeat write so in-process
// caches of live nodes stay current
type MembershipRefresher interface {
	RefreshLiveNodes(ctx context.Context) error
}
