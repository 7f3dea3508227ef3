package api

import "time"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// LockResponse is one lock row
type LockResponse struct {
	Name       string    `json:"name"`
	LockedBy   *string   `json:"locked_by"`
	Locked     bool      `json:"locked"`
	UpdateTime time.Time `json:"update_time"`
}

// LocksResponse lists every lock row
type LocksResponse struct {
	Locks []LockResponse `json:"locks"`
	Count int            `json:"count"`
}

// NodeResponse is one node of the membership view
type NodeResponse struct {
	NodeID        string     `json:"node_id"`
	LastHeartbeat time.Time  `json:"last_heartbeat"`
	DatabaseTime  *time.Time `json:"database_time"`
	Live          bool       `json:"live"`
	Local         bool       `json:"local"`
}

// NodesResponse lists the live nodes as of the last membership refresh
type NodesResponse struct {
	Nodes       []NodeResponse `json:"nodes"`
	Count       int            `json:"count"`
	RefreshedAt *time.Time     `json:"refreshed_at"`
}

// OffsetsResponse maps node ids to clock offset in milliseconds, null when
// the database time of the node's last heartbeat is unknown
type OffsetsResponse struct {
	Offsets map[string]*int64 `json:"offsets_ms"`
}

// StatusResponse is one node status file in the shared home
type StatusResponse struct {
	NodeID     string    `json:"node_id"`
	UpdateTime time.Time `json:"update_time"`
	Local      bool      `json:"local"`
}

// SharedHomeResponse lists every node status file
type SharedHomeResponse struct {
	Statuses []StatusResponse `json:"statuses"`
	Count    int              `json:"count"`
}
