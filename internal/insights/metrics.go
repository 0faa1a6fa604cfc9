package insights

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the insight layer.
type Metrics struct {
	CacheHits    *prometheus.CounterVec
	CacheMisses  *prometheus.CounterVec
	CacheBuilds  *prometheus.CounterVec
	BuildLatency *prometheus.HistogramVec
}

// NewMetrics creates and registers insight metrics on the given registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipnotes_insight_cache_hits_total",
				Help: "Insight snapshot cache hits",
			},
			[]string{"window"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipnotes_insight_cache_misses_total",
				Help: "Insight snapshot cache misses",
			},
			[]string{"window"},
		),
		CacheBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipnotes_insight_builds_total",
				Help: "Insight snapshot builds executed",
			},
			[]string{"window", "outcome"},
		),
		BuildLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clipnotes_insight_build_duration_seconds",
				Help:    "Insight snapshot build latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"window"},
		),
	}

	registry.MustRegister(m.CacheHits, m.CacheMisses, m.CacheBuilds, m.BuildLatency)
	return m
}

func (m *Metrics) recordHit(window Window) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(string(window)).Inc()
}

func (m *Metrics) recordMiss(window Window) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(string(window)).Inc()
}

func (m *Metrics) recordBuild(window Window, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.CacheBuilds.WithLabelValues(string(window), outcome).Inc()
	m.BuildLatency.WithLabelValues(string(window)).Observe(seconds)
}
