package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/dd0wney/cluso-coord/pkg/clock"
	"github.com/dd0wney/cluso-coord/pkg/heartbeat"
	"github.com/dd0wney/cluso-coord/pkg/metrics"
)

// NodeInfo contains what is known about a cluster node
type NodeInfo struct {
	ID            string     `json:"node_id"`
	LastHeartbeat time.Time  `json:"last_heartbeat"` // Node-local time of the last heartbeat
	DatabaseTime  *time.Time `json:"database_time"`  // Database time of the last heartbeat, if recorded
	Live          bool       `json:"live"`
}

// IsHealthy returns true if the node heartbeated within threshold of now
func (n *NodeInfo) IsHealthy(now time.Time, threshold time.Duration) bool {
	return n.LastHeartbeat.After(now.Add(-threshold))
}

// Offset returns the node clock minus the database clock, nil when unknown
func (n *NodeInfo) Offset() *time.Duration {
	if n.DatabaseTime == nil {
		return nil
	}
	offset := n.LastHeartbeat.Sub(*n.DatabaseTime)
	return &offset
}

// HeartbeatSource lists every recorded heartbeat
type HeartbeatSource interface {
	ListHeartbeats(ctx context.Context) ([]heartbeat.Row, error)
}

// ClusterMembership tracks all nodes in the cluster
//
// Concurrent Safety:
// 1. All public methods use RWMutex for thread-safe access
// 2. Read operations (GetXxx) use RLock for concurrent reads
// 3. RefreshLiveNodes reads the source without the lock and swaps the map in
// 4. Returned NodeInfo values are copies
type ClusterMembership struct {
	config          ClusterConfig
	source          HeartbeatSource
	clock           clock.Clock
	nodes           map[string]*NodeInfo // nodeID -> NodeInfo
	lastRefresh     time.Time
	mu              sync.RWMutex      // Protects all fields
	metricsRegistry *metrics.Registry // Metrics tracking
}

// NewClusterMembership creates a new membership tracker. Until the first
// refresh only the local node is known.
func NewClusterMembership(config ClusterConfig) *ClusterMembership {
	cm := &ClusterMembership{
		config:          config,
		clock:           clock.System{},
		nodes:           make(map[string]*NodeInfo),
		metricsRegistry: metrics.DefaultRegistry(),
	}

	cm.nodes[config.NodeID] = &NodeInfo{ID: config.NodeID}

	if cm.metricsRegistry != nil {
		cm.metricsRegistry.UpdateClusterMetrics(len(cm.nodes), 0, nil)
	}

	return cm
}
