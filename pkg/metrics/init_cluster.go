package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initClusterMetrics() {
	r.ClusterNodesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "cluso_cluster_nodes_total",
			Help: "Nodes that have ever written a heartbeat",
		},
	)

	r.ClusterLiveNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "cluso_cluster_live_nodes",
			Help: "Nodes whose last heartbeat is within the liveness threshold",
		},
	)

	r.ClusterClockOffsetMs = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cluso_cluster_clock_offset_ms",
			Help: "Node clock minus database clock at the last heartbeat, in milliseconds",
		},
		[]string{"node"},
	)
}
