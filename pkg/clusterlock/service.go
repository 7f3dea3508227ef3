// Package clusterlock hands out named locks that exclude each other across
// every node sharing the lock table.
//
// Before the first handle is returned in a process, the service deletes lock
// rows whose holder is not a live node, reclaiming locks of nodes that died
// while holding them. That cleanup runs once per process no matter how many
// goroutines ask for their first lock at the same time.
package clusterlock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-coord/pkg/clock"
	"github.com/dd0wney/cluso-coord/pkg/lockstore"
	"github.com/dd0wney/cluso-coord/pkg/logging"
	"github.com/dd0wney/cluso-coord/pkg/metrics"
)

// LiveNodeSource tells the service who this node is and which nodes are live
type LiveNodeSource interface {
	NodeID() string
	LiveNodes(ctx context.Context) (map[string]struct{}, error)
}

// Options carries the optional collaborators of Service
type Options struct {
	Clock   clock.Clock
	Metrics *metrics.Registry
	Logger  logging.Logger
}

// CleanupResult is the memoized outcome of orphan cleanup
type CleanupResult struct {
	Deleted int64    `json:"deleted"`
	Holders []string `json:"holders"`
	Err     error    `json:"-"`
}

// Service is the cluster lock facade
type Service struct {
	store   lockstore.Store
	nodes   LiveNodeSource
	clock   clock.Clock
	metrics *metrics.Registry
	logger  logging.Logger

	cleanupOnce   sync.Once
	cleanupResult CleanupResult
	cleanupDone   atomic.Bool

	mu    sync.Mutex
	locks map[string]*Lock
}

// NewService creates a lock service over store
func NewService(store lockstore.Store, nodes LiveNodeSource, opts Options) *Service {
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	return &Service{
		store:   store,
		nodes:   nodes,
		clock:   c,
		metrics: opts.Metrics,
		logger:  logging.OrNop(opts.Logger).With(logging.Component("clusterlock")),
		locks:   make(map[string]*Lock),
	}
}

// GetLockForName returns the handle for name, creating the lock row on first
// use. The same handle is returned for every call with the same name.
func (s *Service) GetLockForName(ctx context.Context, name string) (*Lock, error) {
	if name == "" {
		return nil, lockstore.ErrEmptyLockName
	}

	s.ensureCleanup(ctx)

	s.mu.Lock()
	lock, ok := s.locks[name]
	s.mu.Unlock()
	if ok {
		return lock, nil
	}

	start := time.Now()
	if err := s.store.InsertIfAbsent(ctx, name, s.clock.Now()); err != nil {
		if s.metrics != nil {
			s.metrics.RecordLockOperation("create", metrics.ResultError, time.Since(start))
		}
		return nil, fmt.Errorf("failed to get lock %s: %w", name, err)
	}
	if s.metrics != nil {
		s.metrics.RecordLockOperation("create", metrics.ResultSuccess, time.Since(start))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have created the handle meanwhile
	if lock, ok := s.locks[name]; ok {
		return lock, nil
	}
	lock = &Lock{
		name:    name,
		service: s,
		stats:   newStatistics(),
		logger:  s.logger.With(logging.LockName(name)),
	}
	s.locks[name] = lock
	return lock, nil
}

// Status returns the stored row of name, nil if the lock was never created
func (s *Service) Status(ctx context.Context, name string) (*lockstore.LockRow, error) {
	return s.store.GetStatus(ctx, name)
}

// ListLocks returns every stored lock row
func (s *Service) ListLocks(ctx context.Context) ([]lockstore.LockRow, error) {
	return s.store.ListLocks(ctx)
}

// Locks returns the handles created by this process, sorted by name
func (s *Service) Locks() []*Lock {
	s.mu.Lock()
	defer s.mu.Unlock()

	locks := make([]*Lock, 0, len(s.locks))
	for _, lock := range s.locks {
		locks = append(locks, lock)
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].name < locks[j].name })
	return locks
}

// NodeID returns the holder id this service acquires locks as
func (s *Service) NodeID() string {
	return s.nodeID()
}

// Cleanup returns the orphan cleanup outcome and whether it has run yet
func (s *Service) Cleanup() (CleanupResult, bool) {
	if !s.cleanupDone.Load() {
		return CleanupResult{}, false
	}
	return s.cleanupResult, true
}

func (s *Service) nodeID() string {
	return s.nodes.NodeID()
}

// ensureCleanup blocks concurrent first callers until the one cleanup has
// finished. A failed cleanup is logged and not retried; locks held by dead
// nodes then stay unavailable, which is unfortunate but never unsafe.
func (s *Service) ensureCleanup(ctx context.Context) {
	s.cleanupOnce.Do(func() {
		// The first caller's cancellation must not abort the cleanup every
		// other caller is waiting on.
		result := s.cleanupOrphans(context.WithoutCancel(ctx))
		s.cleanupResult = result
		s.cleanupDone.Store(true)

		if s.metrics != nil {
			s.metrics.RecordOrphanCleanup(result.Deleted, result.Err)
		}
		if result.Err != nil {
			s.logger.Error("orphan lock cleanup failed", logging.Error(result.Err))
			return
		}
		s.logger.Info("orphan lock cleanup finished",
			logging.Int64("deleted", result.Deleted),
			logging.Any("holders", result.Holders))
	})
}

// cleanupOrphans deletes every lock row whose holder is not live. This node's
// own id counts as not live: no handle has been handed out yet in this
// process, so any lock it appears to hold belongs to a previous incarnation.
func (s *Service) cleanupOrphans(ctx context.Context) CleanupResult {
	live, err := s.nodes.LiveNodes(ctx)
	if err != nil {
		return CleanupResult{Err: fmt.Errorf("failed to find live nodes: %w", err)}
	}
	self := s.nodeID()

	rows, err := s.store.ListLocks(ctx)
	if err != nil {
		return CleanupResult{Err: err}
	}

	seen := make(map[string]struct{})
	var result CleanupResult
	for _, row := range rows {
		if !row.IsLocked() {
			continue
		}
		if _, ok := live[row.LockedBy]; ok && row.LockedBy != self {
			continue
		}
		if _, ok := seen[row.LockedBy]; ok {
			continue
		}
		seen[row.LockedBy] = struct{}{}

		deleted, err := s.store.DeleteLocksHeldBy(ctx, row.LockedBy)
		if err != nil {
			result.Err = err
			return result
		}
		result.Deleted += deleted
		result.Holders = append(result.Holders, row.LockedBy)
	}

	sort.Strings(result.Holders)
	return result
}
