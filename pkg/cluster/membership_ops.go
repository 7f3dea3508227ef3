package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-coord/pkg/clock"
	"github.com/dd0wney/cluso-coord/pkg/metrics"
)

// SetSource attaches the heartbeat store membership is refreshed from. The
// store itself calls RefreshLiveNodes after each write, so it is attached
// after both exist.
func (cm *ClusterMembership) SetSource(source HeartbeatSource) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.source = source
}

// SetClock replaces the clock used to judge liveness
func (cm *ClusterMembership) SetClock(c clock.Clock) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.clock = c
}

// SetMetricsRegistry replaces the registry membership gauges are written to
func (cm *ClusterMembership) SetMetricsRegistry(r *metrics.Registry) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.metricsRegistry = r
}

// RefreshLiveNodes rebuilds the membership view from the heartbeat source.
// In a non-clustered deployment it is a no-op.
func (cm *ClusterMembership) RefreshLiveNodes(ctx context.Context) error {
	if !cm.config.Clustered {
		return nil
	}

	cm.mu.RLock()
	source, c := cm.source, cm.clock
	cm.mu.RUnlock()

	if source == nil {
		return ErrNoHeartbeatSource
	}

	rows, err := source.ListHeartbeats(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh membership: %w", err)
	}

	now := c.Now()
	nodes := make(map[string]*NodeInfo, len(rows)+1)
	offsets := make(map[string]time.Duration)
	live := 0
	for _, row := range rows {
		node := &NodeInfo{
			ID:            row.NodeID,
			LastHeartbeat: row.HeartbeatTime,
			DatabaseTime:  row.DatabaseTime,
		}
		node.Live = node.IsHealthy(now, cm.config.LivenessThreshold)
		if node.Live {
			live++
			if offset := node.Offset(); offset != nil {
				offsets[node.ID] = *offset
			}
		}
		nodes[node.ID] = node
	}

	// The local node is always a member, even before its first heartbeat lands
	if _, ok := nodes[cm.config.NodeID]; !ok {
		nodes[cm.config.NodeID] = &NodeInfo{ID: cm.config.NodeID}
	}

	cm.mu.Lock()
	cm.nodes = nodes
	cm.lastRefresh = now
	registry := cm.metricsRegistry
	cm.mu.Unlock()

	if registry != nil {
		registry.UpdateClusterMetrics(len(nodes), live, offsets)
	}

	return nil
}
