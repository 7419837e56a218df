package manager

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	modelBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrd",
			Subsystem: "model",
			Name:      "builds_total",
			Help:      "Total number of model builds by outcome",
		},
		[]string{"outcome"},
	)

	modelBuildSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ocrd",
			Subsystem: "model",
			Name:      "build_duration_seconds",
			Help:      "Duration of model builds in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ocrd",
			Subsystem: "model",
			Name:      "cache_hits_total",
			Help:      "Requests served by an already-built model",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ocrd",
			Subsystem: "model",
			Name:      "cache_misses_total",
			Help:      "Requests that had to build or wait for a model",
		},
	)

	evictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ocrd",
			Subsystem: "model",
			Name:      "evictions_total",
			Help:      "Cached models evicted to respect the capacity limit",
		},
	)
)

func init() {
	prometheus.MustRegister(modelBuildsTotal, modelBuildSeconds, cacheHitsTotal, cacheMissesTotal, evictionsTotal)
}
