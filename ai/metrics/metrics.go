// Package metrics exports retrieval and cache metrics in Prometheus format.
// All methods are safe on a nil *Exporter so instrumentation can be wired
// optionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache names used as metric labels.
const (
	CacheEmbedding  = "embedding"
	CacheRetrieval  = "retrieval"
	CacheGeneration = "generation"
)

// Exporter collects retrieval-core metrics into a dedicated registry.
type Exporter struct {
	registry           *prometheus.Registry
	retrievalDuration  *prometheus.HistogramVec
	generationDuration prometheus.Histogram
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
}

// NewExporter creates an Exporter with its own registry.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		retrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quill",
			Name:      "retrieval_duration_seconds",
			Help:      "Duration of retrieval calls by strategy.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quill",
			Name:      "generation_duration_seconds",
			Help:      "Duration of generation calls.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quill",
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache name.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quill",
			Name:      "cache_misses_total",
			Help:      "Cache misses by cache name.",
		}, []string{"cache"}),
	}

	e.registry.MustRegister(e.retrievalDuration, e.generationDuration, e.cacheHits, e.cacheMisses)
	return e
}

// Handler returns an HTTP handler serving the registry, for callers that
// choose to expose it.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ObserveRetrieval records the duration of one retrieval call.
func (e *Exporter) ObserveRetrieval(strategy string, d time.Duration) {
	if e == nil {
		return
	}
	e.retrievalDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// ObserveGeneration records the duration of one generation call.
func (e *Exporter) ObserveGeneration(d time.Duration) {
	if e == nil {
		return
	}
	e.generationDuration.Observe(d.Seconds())
}

// CacheHit counts a hit for the named cache.
func (e *Exporter) CacheHit(name string) {
	if e == nil {
		return
	}
	e.cacheHits.WithLabelValues(name).Inc()
}

// CacheMiss counts a miss for the named cache.
func (e *Exporter) CacheMiss(name string) {
	if e == nil {
		return
	}
	e.cacheMisses.WithLabelValues(name).Inc()
}
