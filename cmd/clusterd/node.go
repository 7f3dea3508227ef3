package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dd0wney/cluso-coord/pkg/api"
	"github.com/dd0wney/cluso-coord/pkg/clock"
	"github.com/dd0wney/cluso-coord/pkg/cluster"
	"github.com/dd0wney/cluso-coord/pkg/clusterlock"
	"github.com/dd0wney/cluso-coord/pkg/config"
	"github.com/dd0wney/cluso-coord/pkg/database"
	"github.com/dd0wney/cluso-coord/pkg/health"
	"github.com/dd0wney/cluso-coord/pkg/heartbeat"
	"github.com/dd0wney/cluso-coord/pkg/instrumentation"
	"github.com/dd0wney/cluso-coord/pkg/lockstore"
	"github.com/dd0wney/cluso-coord/pkg/logging"
	"github.com/dd0wney/cluso-coord/pkg/metrics"
	"github.com/dd0wney/cluso-coord/pkg/scheduler"
	"github.com/dd0wney/cluso-coord/pkg/sharedhome"
)

const (
	systemMetricsJobName  = "cluso.system-metrics"
	systemMetricsInterval = 10 * time.Second

	// maxClockOffset is the node to database clock drift reported as degraded
	maxClockOffset = 5 * time.Second
)

// node is one assembled coordination node
type node struct {
	cfg        *config.Config
	logger     logging.Logger
	registry   *metrics.Registry
	pool       *pgxpool.Pool
	membership *cluster.ClusterMembership
	heartbeats heartbeat.Service
	files      *sharedhome.FileStore
	scheduler  *scheduler.Scheduler
	locks      *clusterlock.Service
	health     *health.HealthChecker
	server     *api.Server
	startTime  time.Time
}

// newNode wires every component. When clustered it connects to the
// database, migrates and verifies the schema.
func newNode(ctx context.Context, cfg *config.Config, logger logging.Logger) (*node, error) {
	n := &node{
		cfg:       cfg,
		logger:    logger,
		registry:  metrics.NewRegistry(),
		scheduler: scheduler.New(logger),
		startTime: time.Now(),
	}

	membership := cfg.Membership()
	if err := membership.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cluster configuration: %w", err)
	}
	n.membership = cluster.NewClusterMembership(membership)
	n.membership.SetMetricsRegistry(n.registry)

	var lockStore lockstore.Store
	if cfg.Cluster.Clustered {
		if err := n.connect(ctx); err != nil {
			return nil, err
		}
		times := database.NewPGTimeReader(n.pool)

		hbStore := heartbeat.NewPGStore(n.pool, times, n.membership, logger)
		n.membership.SetSource(hbStore)

		n.files = sharedhome.NewFileStore(cfg.Cluster.SharedHome, logger)
		n.heartbeats = heartbeat.NewService(hbStore, n.files, n.membership, times,
			heartbeat.Config{
				Interval:          cfg.Cluster.HeartbeatInterval,
				LivenessThreshold: cfg.Cluster.LivenessThreshold,
			},
			heartbeat.ServiceOptions{Clock: clock.System{}, Metrics: n.registry, Logger: logger})
		lockStore = lockstore.NewPGStore(n.pool)
	} else {
		n.heartbeats = heartbeat.NewNullService()
		lockStore = lockstore.NewMemoryStore()
	}

	n.locks = clusterlock.NewService(lockStore, n.heartbeats, clusterlock.Options{
		Clock:   clock.System{},
		Metrics: n.registry,
		Logger:  logger,
	})
	if err := n.registry.Register(instrumentation.NewCollector(n.locks)); err != nil {
		n.Close()
		return nil, fmt.Errorf("failed to register lock collector: %w", err)
	}

	if err := n.schedule(); err != nil {
		n.Close()
		return nil, err
	}

	n.health = n.healthChecks()
	opts := api.Options{
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Logger:       logger,
		Metrics:      n.registry,
		Health:       n.health,
		Offsets:      n.heartbeats,
	}
	if n.files != nil {
		opts.SharedHome = n.files
	}
	n.server = api.NewServer(n.locks, n.membership, opts)
	return n, nil
}

func (n *node) connect(ctx context.Context) error {
	pool, err := database.NewPool(ctx, n.cfg.Pool())
	if err != nil {
		return err
	}
	n.pool = pool

	if n.cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			n.Close()
			return err
		}
	}
	if err := database.VerifySchema(ctx, pool); err != nil {
		n.Close()
		return err
	}
	return nil
}

func (n *node) schedule() error {
	if err := n.heartbeats.Schedule(n.scheduler); err != nil {
		return fmt.Errorf("failed to schedule heartbeat jobs: %w", err)
	}
	return n.scheduler.Schedule(scheduler.Job{
		Name:           systemMetricsJobName,
		Interval:       systemMetricsInterval,
		RunImmediately: true,
		Run: func(ctx context.Context) error {
			n.registry.UpdateSystemMetrics(n.startTime)
			return nil
		},
	})
}

func (n *node) healthChecks() *health.HealthChecker {
	hc := health.NewHealthChecker()
	nodeID := n.heartbeats.NodeID()

	hc.RegisterLivenessCheck("process", health.SimpleCheck("process"))
	hc.RegisterCheck("lock_cleanup", health.LockCleanupCheck(func() (int64, bool, error) {
		result, done := n.locks.Cleanup()
		return result.Deleted, done, result.Err
	}))

	if !n.cfg.Cluster.Clustered {
		return hc
	}

	db := health.DatabaseCheck(n.pool.Ping)
	hb := health.HeartbeatCheck(func(ctx context.Context) (*time.Time, error) {
		return n.heartbeats.LastHeartbeatTime(ctx, nodeID)
	}, clock.System{}, n.cfg.Cluster.HeartbeatInterval, n.cfg.Cluster.LivenessThreshold)

	hc.RegisterCheck("database", db)
	hc.RegisterCheck("cluster", health.MembershipCheck(func() (int, int) {
		return n.membership.GetLiveNodeCount(), n.membership.GetNodeCount()
	}))
	hc.RegisterCheck("heartbeat", hb)
	hc.RegisterCheck("shared_home", health.SharedHomeCheck(func() (*time.Time, error) {
		status, err := n.files.Read(nodeID)
		if err != nil || status == nil {
			return nil, err
		}
		return &status.UpdateTime, nil
	}, clock.System{}, 2*heartbeat.SharedHomeInterval))
	hc.RegisterCheck("clock_offset", health.ClockOffsetCheck(n.heartbeats.ActiveNodesDatabaseTimeOffsets, maxClockOffset))

	hc.RegisterReadinessCheck("database", db)
	hc.RegisterReadinessCheck("heartbeat", hb)
	return hc
}

// Start launches the scheduled jobs and serves the admin API until Shutdown
func (n *node) Start(ctx context.Context) error {
	if err := n.scheduler.Start(ctx); err != nil {
		return err
	}
	return n.server.Start()
}

// Shutdown stops the admin API and the jobs, removes this node's shared
// home status file and closes the pool
func (n *node) Shutdown(ctx context.Context) {
	if err := n.server.Shutdown(ctx); err != nil {
		n.logger.Warn("admin API shutdown failed", logging.Error(err))
	}
	n.scheduler.Stop()
	n.heartbeats.Depart()
	n.Close()
}

// Close releases the database pool
func (n *node) Close() {
	if n.pool != nil {
		n.pool.Close()
		n.pool = nil
	}
}
