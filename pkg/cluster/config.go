package cluster

import "time"

// ClusterConfig defines this node's identity and liveness settings
type ClusterConfig struct {
	NodeID    string // Unique identifier for this node
	Clustered bool   // False for a single-node deployment

	HeartbeatInterval time.Duration // Interval between heartbeats (default: 30s)
	LivenessThreshold time.Duration // Heartbeat age after which a node is dead (default: 5m)
}

// DefaultClusterConfig returns a safe default configuration
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		Clustered:         true,
		HeartbeatInterval: 30 * time.Second,
		LivenessThreshold: 5 * time.Minute,
	}
}

// Validate checks if configuration is valid
func (c *ClusterConfig) Validate() error {
	if c.NodeID == "" {
		return ErrInvalidNodeID
	}
	if c.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if c.LivenessThreshold <= c.HeartbeatInterval {
		return ErrLivenessThresholdTooSmall
	}
	return nil
}
