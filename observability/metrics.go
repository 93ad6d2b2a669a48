package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the authentication counters
type Metrics struct {
	registry      *prometheus.Registry
	challenges    *prometheus.CounterVec
	verifications *prometheus.CounterVec
	blocks        *prometheus.CounterVec
}

// NewMetrics registers the counters on a dedicated registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmgate",
			Name:      "challenges_total",
			Help:      "Challenge requests by outcome.",
		}, []string{"outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmgate",
			Name:      "verifications_total",
			Help:      "Verification requests by outcome.",
		}, []string{"outcome"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmgate",
			Name:      "rate_limit_blocks_total",
			Help:      "Requests rejected by a rate limiter, by scope.",
		}, []string{"scope"}),
	}

	m.registry.MustRegister(
		m.challenges,
		m.verifications,
		m.blocks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Challenge counts one challenge request
func (m *Metrics) Challenge(outcome string) {
	if m == nil {
		return
	}
	m.challenges.WithLabelValues(outcome).Inc()
}

// Verification counts one verify request
func (m *Metrics) Verification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

// Blocked counts one rate limited request
func (m *Metrics) Blocked(scope string) {
	if m == nil {
		return
	}
	m.blocks.WithLabelValues(scope).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
