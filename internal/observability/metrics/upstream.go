package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics counts retries and breaker transitions of outbound calls.
// It satisfies resilience.Observer.
type UpstreamMetrics struct {
	service      string
	retries      *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

var breakerStates = []string{"closed", "half-open", "open"}

func NewUpstreamMetrics(service string, registerer prometheus.Registerer) *UpstreamMetrics {
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Retried upstream calls by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "breaker_state",
			Help:      "1 for the current circuit breaker state of an operation, 0 otherwise.",
		},
		[]string{"service", "operation", "state"},
	)
	registerer.MustRegister(retries, breakerState)

	return &UpstreamMetrics{
		service:      service,
		retries:      retries,
		breakerState: breakerState,
	}
}

func (m *UpstreamMetrics) ObserveRetry(operation string) {
	m.retries.WithLabelValues(m.service, operation).Inc()
}

func (m *UpstreamMetrics) ObserveBreakerState(operation, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.breakerState.WithLabelValues(m.service, operation, s).Set(v)
	}
}
