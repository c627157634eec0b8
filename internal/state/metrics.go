package state

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// metrics holds the state service's prometheus instrumentation. A private
// registry keeps the /metrics output limited to service-owned series.
type metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	events        prometheus.Counter
	searches      prometheus.Counter
	panics        prometheus.Counter
	applyOverflow prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hydra_state_requests_total",
			Help: "HTTP requests served by the state service.",
		}, []string{"method", "path"}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydra_state_events_total",
			Help: "Console events appended to the event log.",
		}),
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydra_state_searches_total",
			Help: "Search requests accepted into the queue.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydra_state_handler_panics_total",
			Help: "Handler panics recovered by the middleware.",
		}),
		applyOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydra_state_apply_overflow_total",
			Help: "Fire-and-forget updates applied inline because the queue was full.",
		}),
	}

	m.registry.MustRegister(m.requests, m.events, m.searches, m.panics, m.applyOverflow)
	return m
}

// snapshot exposes the scalar counters for the JSON /status document.
func (m *metrics) snapshot() map[string]uint64 {
	return map[string]uint64{
		"events_emitted":    counterValue(m.events),
		"searches_accepted": counterValue(m.searches),
		"handler_panics":    counterValue(m.panics),
	}
}

func counterValue(c prometheus.Counter) uint64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil || pb.Counter == nil || pb.Counter.Value == nil {
		return 0
	}
	return uint64(*pb.Counter.Value)
}
