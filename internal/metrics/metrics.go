// Package metrics exposes pipeline build and provider counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pipeline build outcomes and provider failures.
type Collector struct {
	registry       *prometheus.Registry
	buildsTotal    *prometheus.CounterVec
	buildDuration  prometheus.Histogram
	providerErrors *prometheus.CounterVec
}

// NewCollector registers the pipeline metrics on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		buildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_builds_total",
			Help: "Total pipeline builds by outcome",
		}, []string{"outcome"}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_build_duration_seconds",
			Help:    "Pipeline build duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		providerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_provider_errors_total",
			Help: "Total hosting provider call failures by operation",
		}, []string{"operation"}),
	}
}

// ObserveBuild records one build and its duration.
func (c *Collector) ObserveBuild(outcome string, duration time.Duration) {
	c.buildsTotal.WithLabelValues(outcome).Inc()
	c.buildDuration.Observe(duration.Seconds())
}

// ProviderError records a failed provider call.
func (c *Collector) ProviderError(operation string) {
	c.providerErrors.WithLabelValues(operation).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
