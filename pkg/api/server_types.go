package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dd0wney/cluso-coord/pkg/cluster"
	"github.com/dd0wney/cluso-coord/pkg/health"
	"github.com/dd0wney/cluso-coord/pkg/lockstore"
	"github.com/dd0wney/cluso-coord/pkg/logging"
	"github.com/dd0wney/cluso-coord/pkg/metrics"
	"github.com/dd0wney/cluso-coord/pkg/sharedhome"
)

// LockSource lists lock rows
type LockSource interface {
	ListLocks(ctx context.Context) ([]lockstore.LockRow, error)
	Status(ctx context.Context, name string) (*lockstore.LockRow, error)
}

// NodeSource is this node's cached membership view
type NodeSource interface {
	NodeID() string
	GetLiveNodes() []cluster.NodeInfo
	GetNode(nodeID string) (*cluster.NodeInfo, error)
	LastRefresh() time.Time
}

// OffsetSource reports clock offsets of active nodes against the database
type OffsetSource interface {
	ActiveNodesDatabaseTimeOffsets(ctx context.Context) (map[string]*time.Duration, error)
}

// StatusSource lists the status files of the shared home
type StatusSource interface {
	ReadAll() ([]sharedhome.Status, error)
}

// Options configures the admin API listener
type Options struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Logger  logging.Logger
	Metrics *metrics.Registry
	Health  *health.HealthChecker

	// Offsets serves /nodes/offsets when set
	Offsets OffsetSource
	// SharedHome serves /nodes/shared-home when set
	SharedHome StatusSource
}

// Server is the read-only admin HTTP API of a node
type Server struct {
	locks           LockSource
	nodes           NodeSource
	offsets         OffsetSource
	sharedHome      StatusSource
	logger          logging.Logger
	metricsRegistry *metrics.Registry
	healthChecker   *health.HealthChecker
	httpServer      *http.Server
	startTime       time.Time
}
