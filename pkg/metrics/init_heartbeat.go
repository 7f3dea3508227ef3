package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initHeartbeatMetrics() {
	r.HeartbeatsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_heartbeats_total",
			Help: "Heartbeat writes by result",
		},
		[]string{"result"}, // success, error
	)

	r.HeartbeatLastSuccessTimestamp = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "cluso_heartbeat_last_success_timestamp",
			Help: "Unix time of the last successful heartbeat of this node",
		},
	)

	r.SharedHomeWritesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_shared_home_writes_total",
			Help: "Shared home node status file writes by result",
		},
		[]string{"result"},
	)
}
