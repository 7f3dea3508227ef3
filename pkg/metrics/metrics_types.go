package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// HTTP Metrics (admin API)
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Lock Metrics
	LockOperationsTotal     *prometheus.CounterVec
	LockOperationDuration   *prometheus.HistogramVec
	OrphanCleanupRunsTotal  *prometheus.CounterVec
	OrphanLocksDeletedTotal prometheus.Counter

	// Heartbeat Metrics
	HeartbeatsTotal               *prometheus.CounterVec
	HeartbeatLastSuccessTimestamp prometheus.Gauge
	SharedHomeWritesTotal         *prometheus.CounterVec

	// Cluster Metrics
	ClusterNodesTotal    prometheus.Gauge
	ClusterLiveNodes     prometheus.Gauge
	ClusterClockOffsetMs *prometheus.GaugeVec

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initHTTPMetrics()
	r.initLockMetrics()
	r.initHeartbeatMetrics()
	r.initClusterMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Register adds an extra collector, such as per-lock instrumentation, to the
// underlying registry
func (r *Registry) Register(c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.registry.Register(c)
}
