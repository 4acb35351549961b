// Package metrics collects Prometheus telemetry for engine callbacks
// and store commits.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records callback outcomes, commit latency and chain height.
// It satisfies engine.Metrics.
type Collector struct {
	registry *prometheus.Registry

	callbacks     *prometheus.CounterVec
	commitLatency prometheus.Histogram
	commitFailed  prometheus.Counter
	height        prometheus.Gauge
	pending       prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "breezy"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.callbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "callbacks_total",
			Help:      "Lifecycle callbacks handled, by kind and response code",
		},
		[]string{"kind", "code"},
	)

	c.commitLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commit_duration_seconds",
			Help:      "Time taken to flush the write buffer and compute the new root",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
	)

	c.commitFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commit_failures_total",
			Help:      "Commits that failed and halted the chain",
		},
	)

	c.height = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "height",
			Help:      "Last committed height",
		},
	)

	c.pending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "pending_ops",
			Help:      "Buffered operations flushed by the last commit",
		},
	)

	c.registry.MustRegister(
		c.callbacks,
		c.commitLatency,
		c.commitFailed,
		c.height,
		c.pending,
	)
	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Callback counts one handled callback.
func (c *Collector) Callback(kind string, code uint32) {
	c.callbacks.WithLabelValues(kind, strconv.FormatUint(uint64(code), 10)).Inc()
}

// Commit records a commit. A non-nil err counts as a failure and
// leaves the height gauge alone.
func (c *Collector) Commit(d time.Duration, height uint64, ops int, err error) {
	if err != nil {
		c.commitFailed.Inc()
		return
	}
	c.commitLatency.Observe(d.Seconds())
	c.height.Set(float64(height))
	c.pending.Set(float64(ops))
}
