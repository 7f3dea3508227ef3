package clusterlock

import (
	"context"
	"errors"
	"time"

	"github.com/dd0wney/cluso-coord/pkg/lockstore"
	"github.com/dd0wney/cluso-coord/pkg/logging"
	"github.com/dd0wney/cluso-coord/pkg/metrics"
)

// Lock is a handle on one named cluster-wide lock. Handles are not reentrant:
// a second TryLock by the holding node returns false. A handle may be shared
// between goroutines; ownership belongs to the node, not the goroutine.
type Lock struct {
	name    string
	service *Service
	stats   *statistics
	logger  logging.Logger
}

// Name returns the lock name
func (l *Lock) Name() string {
	return l.name
}

// TryLock attempts to take the lock for this node without waiting. False
// means another node, or this one, already holds it.
//
// Orphan cleanup on a starting node deletes the rows of dead holders, so the
// row behind a cached handle can disappear. A missing row is re-created as
// unlocked and the acquire is retried once.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	s := l.service
	start := time.Now()
	now := s.clock.Now()

	acquired, err := s.store.TryAcquire(ctx, l.name, s.nodeID(), now)
	if err == nil && !acquired {
		var recreated bool
		recreated, err = l.recreateIfMissing(ctx, now)
		if err == nil && recreated {
			acquired, err = s.store.TryAcquire(ctx, l.name, s.nodeID(), now)
		}
	}
	if err != nil {
		l.stats.recordError()
		l.record("acquire", metrics.ResultError, start)
		l.logger.Error("lock acquire failed", logging.Error(err))
		return false, err
	}

	l.stats.recordAcquire(acquired, now)
	if acquired {
		l.record("acquire", metrics.ResultAcquired, start)
		l.logger.Debug("lock acquired")
	} else {
		l.record("acquire", metrics.ResultBusy, start)
		l.logger.Debug("lock busy")
	}
	return acquired, nil
}

// recreateIfMissing inserts the lock row when it no longer exists. It reports
// whether the row was missing.
func (l *Lock) recreateIfMissing(ctx context.Context, at time.Time) (bool, error) {
	s := l.service
	row, err := s.store.GetStatus(ctx, l.name)
	if err != nil || row != nil {
		return false, err
	}

	start := time.Now()
	if err := s.store.InsertIfAbsent(ctx, l.name, at); err != nil {
		l.record("create", metrics.ResultError, start)
		return false, err
	}
	l.stats.recordRecreated()
	l.record("create", metrics.ResultRecreated, start)
	l.logger.Info("lock row was deleted by orphan cleanup, re-created it")
	return true, nil
}

// Unlock releases the lock. Releasing a lock this node does not hold returns
// an error wrapping lockstore.ErrNotOwner; callers must treat it as fatal for
// the critical section they believed they were in.
func (l *Lock) Unlock(ctx context.Context) error {
	s := l.service
	start := time.Now()
	now := s.clock.Now()

	err := s.store.Release(ctx, l.name, s.nodeID(), now)
	switch {
	case err == nil:
		l.stats.recordRelease(now)
		l.record("release", metrics.ResultSuccess, start)
		l.logger.Debug("lock released")
		return nil
	case errors.Is(err, lockstore.ErrNotOwner):
		l.stats.recordLost()
		l.record("release", metrics.ResultError, start)
		l.logger.Error("released a lock this node does not hold", logging.Error(err))
		return err
	default:
		l.stats.recordError()
		l.record("release", metrics.ResultError, start)
		l.logger.Error("lock release failed", logging.Error(err))
		return err
	}
}

// IsHeldByCurrentNode reads the stored holder of the lock
func (l *Lock) IsHeldByCurrentNode(ctx context.Context) (bool, error) {
	row, err := l.service.store.GetStatus(ctx, l.name)
	if err != nil {
		return false, err
	}
	return row != nil && row.LockedBy == l.service.nodeID(), nil
}

// Statistics returns a snapshot of this lock's usage in this process.
// Statistics that never changed are absent.
func (l *Lock) Statistics() map[StatKey]int64 {
	return l.stats.snapshot()
}

func (l *Lock) record(operation, result string, start time.Time) {
	if m := l.service.metrics; m != nil {
		m.RecordLockOperation(operation, result, time.Since(start))
	}
}
