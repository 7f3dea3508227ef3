// Package instrumentation exports cluster lock usage statistics to
// Prometheus. It only reshapes numbers; statistics a lock never reported are
// exported as zero.
package instrumentation

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dd0wney/cluso-coord/pkg/clusterlock"
)

// Kind is the monitoring shape of a statistic
type Kind int

const (
	Counter Kind = iota
	Gauge
)

// Sample is one statistic in monitoring form
type Sample struct {
	Name  string
	Kind  Kind
	Value float64
}

type statInfo struct {
	kind Kind
	help string
}

var stats = map[clusterlock.StatKey]statInfo{
	clusterlock.StatAcquireAttempts: {Counter, "Lock acquire attempts made by this node"},
	clusterlock.StatAcquired:        {Counter, "Lock acquires won by this node"},
	clusterlock.StatBusy:            {Counter, "Lock acquires that found the lock held"},
	clusterlock.StatReleases:        {Counter, "Lock releases by this node"},
	clusterlock.StatErrors:          {Counter, "Lock store failures and not-owner releases"},
	clusterlock.StatRecreated:       {Counter, "Lock rows re-created after orphan cleanup on another node deleted them"},
	clusterlock.StatHeldMillis:      {Counter, "Milliseconds this node held the lock"},
	clusterlock.StatHeld:            {Gauge, "Whether this node holds the lock (1=yes, 0=no)"},
}

// MetricName returns the exported name of a statistic
func MetricName(key clusterlock.StatKey) string {
	name := "cluso_lock_" + string(key)
	if stats[key].kind == Counter {
		name += "_total"
	}
	return name
}

// Samples converts one lock's statistics, in clusterlock.AllStatKeys order
func Samples(values map[clusterlock.StatKey]int64) []Sample {
	samples := make([]Sample, 0, len(clusterlock.AllStatKeys))
	for _, key := range clusterlock.AllStatKeys {
		samples = append(samples, Sample{
			Name:  MetricName(key),
			Kind:  stats[key].kind,
			Value: float64(values[key]),
		})
	}
	return samples
}

// LockSource lists the lock handles to export
type LockSource interface {
	Locks() []*clusterlock.Lock
}

// Collector is a prometheus.Collector over every lock handle of a source,
// labeled by lock name
type Collector struct {
	source LockSource
	descs  map[string]*prometheus.Desc
}

// NewCollector creates a collector; register it with metrics.Registry.Register
func NewCollector(source LockSource) *Collector {
	descs := make(map[string]*prometheus.Desc, len(stats))
	for _, key := range clusterlock.AllStatKeys {
		name := MetricName(key)
		descs[name] = prometheus.NewDesc(name, stats[key].help, []string{"lock"}, nil)
	}
	return &Collector{source: source, descs: descs}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, key := range clusterlock.AllStatKeys {
		ch <- c.descs[MetricName(key)]
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, lock := range c.source.Locks() {
		for _, sample := range Samples(lock.Statistics()) {
			valueType := prometheus.CounterValue
			if sample.Kind == Gauge {
				valueType = prometheus.GaugeValue
			}
			ch <- prometheus.MustNewConstMetric(c.descs[sample.Name], valueType, sample.Value, lock.Name())
		}
	}
}
