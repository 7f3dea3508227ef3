package cluster

import (
	"sort"
	"time"
)

// NodeID returns this node's id
func (cm *ClusterMembership) NodeID() string {
	return cm.config.NodeID
}

// IsClustered reports whether clustering is enabled
func (cm *ClusterMembership) IsClustered() bool {
	return cm.config.Clustered
}

// Config returns the membership configuration
func (cm *ClusterMembership) Config() ClusterConfig {
	return cm.config
}

// GetNode returns info about a specific node
func (cm *ClusterMembership) GetNode(nodeID string) (*NodeInfo, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	node, exists := cm.nodes[nodeID]
	if !exists {
		return nil, ErrNodeNotFound
	}

	// Return a copy to prevent external mutations
	nodeCopy := *node
	return &nodeCopy, nil
}

// GetAllNodes returns every known node, sorted by id
func (cm *ClusterMembership) GetAllNodes() []NodeInfo {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	nodes := make([]NodeInfo, 0, len(cm.nodes))
	for _, node := range cm.nodes {
		nodes = append(nodes, *node)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// GetLiveNodes returns nodes that were live at the last refresh
func (cm *ClusterMembership) GetLiveNodes() []NodeInfo {
	all := cm.GetAllNodes()

	live := make([]NodeInfo, 0, len(all))
	for _, node := range all {
		if node.Live {
			live = append(live, node)
		}
	}
	return live
}

// GetNodeCount returns the total number of known nodes
func (cm *ClusterMembership) GetNodeCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return len(cm.nodes)
}

// GetLiveNodeCount returns the number of live nodes
func (cm *ClusterMembership) GetLiveNodeCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	count := 0
	for _, node := range cm.nodes {
		if node.Live {
			count++
		}
	}
	return count
}

// LastRefresh returns when the view was last rebuilt, zero if never
func (cm *ClusterMembership) LastRefresh() time.Time {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return cm.lastRefresh
}
