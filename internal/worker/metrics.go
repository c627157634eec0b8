package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the worker's prometheus instrumentation on a private
// registry so /metrics only exposes service-owned series.
type metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	enrichments *prometheus.CounterVec
	tagFailures prometheus.Counter
	coverHits   prometheus.Counter
	coverMisses prometheus.Counter
	panics      prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hydra_worker_requests_total",
			Help: "HTTP requests served by the worker service.",
		}, []string{"method", "path"}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hydra_worker_enrichments_total",
			Help: "Background enrichments by outcome.",
		}, []string{"outcome"}),
		tagFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydra_worker_tag_failures_total",
			Help: "Tag writes that failed or timed out.",
		}),
		coverHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydra_worker_cover_cache_hits_total",
			Help: "Cover downloads served from the cache.",
		}),
		coverMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydra_worker_cover_cache_misses_total",
			Help: "Cover downloads that went to the network.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydra_worker_panics_total",
			Help: "Panics recovered in handlers or the enrichment loop.",
		}),
	}

	m.registry.MustRegister(m.requests, m.enrichments, m.tagFailures,
		m.coverHits, m.coverMisses, m.panics)
	return m
}
