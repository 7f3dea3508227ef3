package health

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dd0wney/cluso-coord/pkg/clock"
)

// SimpleCheck creates a simple health check that always returns healthy
func SimpleCheck(name string) CheckFunc {
	return func(ctx context.Context) Check {
		return Check{
			Name:        name,
			Status:      StatusHealthy,
			LastChecked: time.Now(),
		}
	}
}

// DatabaseCheck creates a health check for database connectivity
func DatabaseCheck(ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{
			Name: "database",
		}

		if err := ping(ctx); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Connected"
		}

		return check
	}
}

// HeartbeatCheck reports on this node's last recorded heartbeat. A
// heartbeat within two intervals is healthy, one within the liveness
// threshold is degraded, and anything older (or missing) is unhealthy
// because peers will already consider the node gone.
func HeartbeatCheck(last func(ctx context.Context) (*time.Time, error), c clock.Clock, interval, threshold time.Duration) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{
			Name:    "heartbeat",
			Details: make(map[string]any),
		}

		at, err := last(ctx)
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
			return check
		}
		if at == nil {
			check.Status = StatusUnhealthy
			check.Message = "No heartbeat recorded"
			return check
		}

		age := c.Now().Sub(*at)
		check.Details["last_heartbeat"] = *at
		check.Details["age_ms"] = age.Milliseconds()

		switch {
		case age <= 2*interval:
			check.Status = StatusHealthy
			check.Message = "Heartbeat current"
		case age <= threshold:
			check.Status = StatusDegraded
			check.Message = "Heartbeat overdue"
		default:
			check.Status = StatusUnhealthy
			check.Message = "Heartbeat older than liveness threshold"
		}

		return check
	}
}

// SharedHomeCheck reports on this node's status file. Failures here never
// affect lock correctness, so the worst outcome is degraded.
func SharedHomeCheck(read func() (*time.Time, error), c clock.Clock, maxAge time.Duration) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{
			Name:    "shared_home",
			Details: make(map[string]any),
		}

		updated, err := read()
		switch {
		case err != nil:
			check.Status = StatusDegraded
			check.Message = err.Error()
		case updated == nil:
			check.Status = StatusDegraded
			check.Message = "Status file not written yet"
		default:
			age := c.Now().Sub(*updated)
			check.Details["update_time"] = *updated
			check.Details["age_ms"] = age.Milliseconds()
			if age > maxAge {
				check.Status = StatusDegraded
				check.Message = "Status file stale"
			} else {
				check.Status = StatusHealthy
				check.Message = "Status file current"
			}
		}

		return check
	}
}

// ClockOffsetCheck flags live nodes whose clock drifts from the database
// clock by more than maxOffset. Nodes with no recorded database time are
// listed but not counted against health.
func ClockOffsetCheck(offsets func(ctx context.Context) (map[string]*time.Duration, error), maxOffset time.Duration) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{
			Name:    "clock_offset",
			Details: make(map[string]any),
		}

		got, err := offsets(ctx)
		if err != nil {
			check.Status = StatusDegraded
			check.Message = err.Error()
			return check
		}

		var drifting []string
		for node, off := range got {
			if off == nil {
				check.Details[node] = nil
				continue
			}
			check.Details[node] = off.Milliseconds()
			if off.Abs() > maxOffset {
				drifting = append(drifting, node)
			}
		}
		sort.Strings(drifting)

		if len(drifting) > 0 {
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("Clock offset above %s on %v", maxOffset, drifting)
		} else {
			check.Status = StatusHealthy
			check.Message = "Clocks in sync"
		}

		return check
	}
}

// MembershipCheck reports live and known node counts. The local node is
// always live in its own view, so zero live nodes means membership has
// never been refreshed.
func MembershipCheck(state func() (live, total int)) CheckFunc {
	return func(ctx context.Context) Check {
		live, total := state()
		check := Check{
			Name: "cluster",
			Details: map[string]any{
				"live_nodes":  live,
				"total_nodes": total,
			},
		}

		if live == 0 {
			check.Status = StatusUnhealthy
			check.Message = "No live nodes"
		} else {
			check.Status = StatusHealthy
			check.Message = fmt.Sprintf("%d of %d nodes live", live, total)
		}

		return check
	}
}

// LockCleanupCheck reports the outcome of the one-time orphaned lock
// cleanup. Not having run yet is healthy; a failed run is degraded since
// locks are still handed out.
func LockCleanupCheck(result func() (deleted int64, done bool, err error)) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{
			Name:    "lock_cleanup",
			Details: make(map[string]any),
		}

		deleted, done, err := result()
		check.Details["done"] = done
		switch {
		case !done:
			check.Status = StatusHealthy
			check.Message = "Cleanup pending first lock request"
		case err != nil:
			check.Status = StatusDegraded
			check.Message = err.Error()
		default:
			check.Details["deleted"] = deleted
			check.Status = StatusHealthy
			check.Message = "Cleanup complete"
		}

		return check
	}
}
