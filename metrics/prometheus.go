// Package metrics exports sync engine activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c0deZ3R0/go-inventory-sync/synckit"
)

// Config controls metric naming and histogram layout.
type Config struct {
	// Namespace prefixes every metric. Default: "inventory_sync"
	Namespace string

	// DrainBuckets are the histogram buckets for drain duration, in seconds.
	// Default: prometheus.DefBuckets
	DrainBuckets []float64

	// IncludeRuntime registers the Go and process collectors.
	IncludeRuntime bool
}

// DefaultConfig returns the default collector configuration.
func DefaultConfig() Config {
	return Config{
		Namespace:    "inventory_sync",
		DrainBuckets: prometheus.DefBuckets,
	}
}

// PrometheusCollector implements synckit.MetricsCollector on a private registry.
//
// Safe for concurrent use.
type PrometheusCollector struct {
	registry *prometheus.Registry

	drainDuration *prometheus.HistogramVec
	operations    *prometheus.CounterVec
	queueDepth    *prometheus.GaugeVec
	rollbacks     *prometheus.CounterVec
}

var _ synckit.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector and registers its metrics.
func NewPrometheusCollector(config Config) *PrometheusCollector {
	if config.Namespace == "" {
		config.Namespace = "inventory_sync"
	}
	if len(config.DrainBuckets) == 0 {
		config.DrainBuckets = prometheus.DefBuckets
	}

	c := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
		drainDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "drain_duration_seconds",
			Help:      "Time spent replaying the pending operation queue.",
			Buckets:   config.DrainBuckets,
		}, []string{"domain"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "operations_total",
			Help:      "Mutations by domain, operation type and outcome.",
		}, []string{"domain", "type", "outcome"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "queue_depth",
			Help:      "Operations waiting to be replayed.",
		}, []string{"domain"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "rollbacks_total",
			Help:      "Optimistic changes reverted after the server refused them.",
		}, []string{"domain", "type"}),
	}

	c.registry.MustRegister(c.drainDuration, c.operations, c.queueDepth, c.rollbacks)
	if config.IncludeRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

func (c *PrometheusCollector) RecordDrainDuration(domain string, d time.Duration) {
	c.drainDuration.WithLabelValues(domain).Observe(d.Seconds())
}

func (c *PrometheusCollector) RecordOperation(domain, opType, outcome string) {
	c.operations.WithLabelValues(domain, opType, outcome).Inc()
}

func (c *PrometheusCollector) RecordQueueDepth(domain string, depth int) {
	c.queueDepth.WithLabelValues(domain).Set(float64(depth))
}

func (c *PrometheusCollector) RecordRollback(domain, opType string) {
	c.rollbacks.WithLabelValues(domain, opType).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
