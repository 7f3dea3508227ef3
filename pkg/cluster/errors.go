package cluster

import "errors"

// Configuration errors
var (
	ErrInvalidNodeID             = errors.New("node ID cannot be empty")
	ErrInvalidHeartbeatInterval  = errors.New("heartbeat interval must be positive")
	ErrLivenessThresholdTooSmall = errors.New("liveness threshold must be greater than heartbeat interval")
)

// Membership errors
var (
	ErrNodeNotFound      = errors.New("node not found in membership")
	ErrNoHeartbeatSource = errors.New("membership has no heartbeat source")
)
