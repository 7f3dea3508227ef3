package heartbeat

import (
	"context"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-coord/pkg/clock"
	"github.com/dd0wney/cluso-coord/pkg/database"
	"github.com/dd0wney/cluso-coord/pkg/logging"
	"github.com/dd0wney/cluso-coord/pkg/metrics"
	"github.com/dd0wney/cluso-coord/pkg/scheduler"
	"github.com/dd0wney/cluso-coord/pkg/sharedhome"
)

const (
	// HeartbeatJobName is the scheduler job writing heartbeat rows
	HeartbeatJobName = "cluso.heartbeat"
	// SharedHomeJobName is the scheduler job writing the shared home status file
	SharedHomeJobName = "cluso.shared-home-status"
	// SharedHomeInterval is the fixed cadence of the shared home job
	SharedHomeInterval = time.Minute
)

// Service records this node's liveness and answers liveness queries
type Service interface {
	NodeID() string
	IsClustered() bool

	// Schedule registers the periodic jobs, each with an immediate first run
	Schedule(s JobScheduler) error
	// Beat is one tick of the heartbeat job
	Beat(ctx context.Context) error
	// WriteSharedHomeStatus is one tick of the shared home job
	WriteSharedHomeStatus(ctx context.Context) error

	// LiveNodes returns nodes whose heartbeat is within the liveness threshold
	LiveNodes(ctx context.Context) (map[string]struct{}, error)
	LastHeartbeatTime(ctx context.Context, nodeID string) (*time.Time, error)
	// ActiveNodesDatabaseTimeOffsets uses the database clock minus the
	// liveness threshold as the activity cut-off
	ActiveNodesDatabaseTimeOffsets(ctx context.Context) (map[string]*time.Duration, error)

	// Depart removes this node's shared home status file, best effort
	Depart()
}

// JobScheduler accepts recurring jobs
type JobScheduler interface {
	Schedule(job scheduler.Job) error
}

// Membership is the view of this node the service needs
type Membership interface {
	NodeID() string
	IsClustered() bool
}

// StatusFiles reads and writes shared home status files
type StatusFiles interface {
	Write(status sharedhome.Status) error
	Remove(nodeID string)
}

// Config holds the cadence of the heartbeat job and the liveness window
type Config struct {
	Interval          time.Duration
	LivenessThreshold time.Duration
}

// DefaultService is the clustered Service
type DefaultService struct {
	store      Store
	files      StatusFiles
	membership Membership
	times      database.TimeReader
	clock      clock.Clock
	config     Config
	metrics    *metrics.Registry
	logger     logging.Logger
}

// ServiceOptions carries the optional collaborators of DefaultService
type ServiceOptions struct {
	Clock   clock.Clock
	Metrics *metrics.Registry
	Logger  logging.Logger
}

// NewService creates the clustered heartbeat service
func NewService(store Store, files StatusFiles, membership Membership, times database.TimeReader, cfg Config, opts ServiceOptions) *DefaultService {
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	return &DefaultService{
		store:      store,
		files:      files,
		membership: membership,
		times:      times,
		clock:      c,
		config:     cfg,
		metrics:    opts.Metrics,
		logger: logging.OrNop(opts.Logger).With(
			logging.Component("heartbeat"),
			logging.NodeID(membership.NodeID()),
		),
	}
}

// NodeID implements Service
func (s *DefaultService) NodeID() string {
	return s.membership.NodeID()
}

// IsClustered implements Service
func (s *DefaultService) IsClustered() bool {
	return s.membership.IsClustered()
}

// Schedule implements Service
func (s *DefaultService) Schedule(js JobScheduler) error {
	if err := js.Schedule(scheduler.Job{
		Name:           HeartbeatJobName,
		Interval:       s.config.Interval,
		RunImmediately: true,
		Run:            s.Beat,
	}); err != nil {
		return fmt.Errorf("failed to schedule heartbeat: %w", err)
	}

	if err := js.Schedule(scheduler.Job{
		Name:           SharedHomeJobName,
		Interval:       SharedHomeInterval,
		RunImmediately: true,
		Run:            s.WriteSharedHomeStatus,
	}); err != nil {
		return fmt.Errorf("failed to schedule shared home status: %w", err)
	}

	return nil
}

// Beat implements Service
func (s *DefaultService) Beat(ctx context.Context) error {
	now := s.clock.Now()
	err := s.store.WriteHeartbeat(ctx, s.NodeID(), now)
	if s.metrics != nil {
		s.metrics.RecordHeartbeat(now, err)
	}
	if err != nil {
		return err
	}

	s.logger.Debug("heartbeat written", logging.Time("local_time", now))
	return nil
}

// WriteSharedHomeStatus implements Service
func (s *DefaultService) WriteSharedHomeStatus(ctx context.Context) error {
	err := s.files.Write(sharedhome.Status{NodeID: s.NodeID(), UpdateTime: s.clock.Now()})
	if s.metrics != nil {
		s.metrics.RecordSharedHomeWrite(err)
	}
	return err
}

// LiveNodes implements Service
func (s *DefaultService) LiveNodes(ctx context.Context) (map[string]struct{}, error) {
	return s.store.FindNodesWithHeartbeatsAfter(ctx, s.clock.Now().Add(-s.config.LivenessThreshold))
}

// LastHeartbeatTime implements Service
func (s *DefaultService) LastHeartbeatTime(ctx context.Context, nodeID string) (*time.Time, error) {
	return s.store.GetLastHeartbeatTime(ctx, nodeID)
}

// ActiveNodesDatabaseTimeOffsets implements Service
func (s *DefaultService) ActiveNodesDatabaseTimeOffsets(ctx context.Context) (map[string]*time.Duration, error) {
	dbNow, err := s.times.DatabaseTime(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.GetActiveNodesDatabaseTimeOffsets(ctx, dbNow.Add(-s.config.LivenessThreshold))
}

// Depart implements Service
func (s *DefaultService) Depart() {
	s.files.Remove(s.NodeID())
	s.logger.Info("node departed")
}

var (
	_ Store   = (*PGStore)(nil)
	_ Store   = (*MemoryStore)(nil)
	_ Service = (*DefaultService)(nil)
)
