package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initLockMetrics() {
	r.LockOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_lock_operations_total",
			Help: "Total number of cluster lock operations",
		},
		[]string{"operation", "result"}, // acquire/release/create; acquired, busy, success, error
	)

	r.LockOperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cluso_lock_operation_duration_seconds",
			Help:    "Duration of cluster lock database round trips in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation"},
	)

	r.OrphanCleanupRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_orphan_cleanup_runs_total",
			Help: "Orphan lock cleanup runs",
		},
		[]string{"result"}, // success, error
	)

	r.OrphanLocksDeletedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "cluso_orphan_locks_deleted_total",
			Help: "Lock rows deleted because their holder was no longer live",
		},
	)
}
