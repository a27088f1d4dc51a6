package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

// RetrievalMetrics implements ports.RetrievalObserver.
type RetrievalMetrics struct {
	service string

	requestsTotal    *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	malformedTotal   *prometheus.CounterVec
	results          *prometheus.HistogramVec
	duration         *prometheus.HistogramVec
}

func NewRetrievalMetrics(service string, registerer prometheus.Registerer) *RetrievalMetrics {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total retrievals by outcome.",
		},
		[]string{"service", "outcome"},
	)
	providerFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "provider_failures_total",
			Help:      "Total candidate provider failures by source.",
		},
		[]string{"service", "source"},
	)
	malformedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "malformed_candidates_total",
			Help:      "Total candidates skipped for missing or invalid fields.",
		},
		[]string{"service", "source"},
	)
	results := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "results",
			Help:      "Distribution of returned candidates per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)

	registerer.MustRegister(requestsTotal, providerFailures, malformedTotal, results, duration)

	return &RetrievalMetrics{
		service:          service,
		requestsTotal:    requestsTotal,
		providerFailures: providerFailures,
		malformedTotal:   malformedTotal,
		results:          results,
		duration:         duration,
	}
}

func (m *RetrievalMetrics) ObserveProviderFailure(source domain.CandidateSource) {
	m.providerFailures.WithLabelValues(m.service, string(source)).Inc()
}

func (m *RetrievalMetrics) ObserveMalformed(source domain.CandidateSource, count int) {
	if count <= 0 {
		return
	}
	m.malformedTotal.WithLabelValues(m.service, string(source)).Add(float64(count))
}

func (m *RetrievalMetrics) ObserveRetrieval(outcome string, candidates int, seconds float64) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.requestsTotal.WithLabelValues(m.service, outcome).Inc()
	m.duration.WithLabelValues(m.service, outcome).Observe(seconds)
	m.results.WithLabelValues(m.service).Observe(float64(candidates))
}
