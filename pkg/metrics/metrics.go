package metrics

import (
	"runtime"
	"time"
)

// Results used as label values across the lock and heartbeat metrics
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultAcquired  = "acquired"
	ResultBusy      = "busy"
	ResultRecreated = "recreated"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordResponseSize records the size of an HTTP response body
func (r *Registry) RecordResponseSize(method, path string, size float64) {
	r.HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(size)
}

// IncHTTPRequestsInFlight marks an HTTP request as started
func (r *Registry) IncHTTPRequestsInFlight() {
	r.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight marks an HTTP request as finished
func (r *Registry) DecHTTPRequestsInFlight() {
	r.HTTPRequestsInFlight.Dec()
}

// RecordLockOperation records one lock store round trip
func (r *Registry) RecordLockOperation(operation, result string, duration time.Duration) {
	r.LockOperationsTotal.WithLabelValues(operation, result).Inc()
	r.LockOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordOrphanCleanup records the outcome of an orphan lock cleanup
func (r *Registry) RecordOrphanCleanup(deleted int64, err error) {
	if err != nil {
		r.OrphanCleanupRunsTotal.WithLabelValues(ResultError).Inc()
		return
	}
	r.OrphanCleanupRunsTotal.WithLabelValues(ResultSuccess).Inc()
	r.OrphanLocksDeletedTotal.Add(float64(deleted))
}

// RecordHeartbeat records a heartbeat tick
func (r *Registry) RecordHeartbeat(at time.Time, err error) {
	if err != nil {
		r.HeartbeatsTotal.WithLabelValues(ResultError).Inc()
		return
	}
	r.HeartbeatsTotal.WithLabelValues(ResultSuccess).Inc()
	r.HeartbeatLastSuccessTimestamp.Set(float64(at.Unix()))
}

// RecordSharedHomeWrite records a shared home status write
func (r *Registry) RecordSharedHomeWrite(err error) {
	if err != nil {
		r.SharedHomeWritesTotal.WithLabelValues(ResultError).Inc()
		return
	}
	r.SharedHomeWritesTotal.WithLabelValues(ResultSuccess).Inc()
}

// UpdateClusterMetrics updates membership gauges. offsets holds only nodes
// with a known offset; unknown offsets are not exported.
func (r *Registry) UpdateClusterMetrics(totalNodes, liveNodes int, offsets map[string]time.Duration) {
	r.ClusterNodesTotal.Set(float64(totalNodes))
	r.ClusterLiveNodes.Set(float64(liveNodes))

	r.ClusterClockOffsetMs.Reset()
	for node, offset := range offsets {
		r.ClusterClockOffsetMs.WithLabelValues(node).Set(float64(offset.Milliseconds()))
	}
}

// UpdateSystemMetrics refreshes process gauges
func (r *Registry) UpdateSystemMetrics(startTime time.Time) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	r.UptimeSeconds.Set(time.Since(startTime).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(m.Alloc))
	r.MemorySysBytes.Set(float64(m.Sys))
}
