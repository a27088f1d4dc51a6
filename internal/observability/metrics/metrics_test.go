package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestRetrievalMetricsShareServerRegistry(t *testing.T) {
	server := NewHTTPServerMetrics("memory-api")
	retrieval := NewRetrievalMetrics("memory-api", server.Registerer())

	retrieval.ObserveProviderFailure(domain.SourceVector)
	retrieval.ObserveMalformed(domain.SourceLexical, 3)
	retrieval.ObserveRetrieval("degraded", 4, 0.02)

	body := scrape(t, server.Handler())
	for _, want := range []string{
		`memory_retrieval_provider_failures_total{service="memory-api",source="vector"} 1`,
		`memory_retrieval_malformed_candidates_total{service="memory-api",source="lexical"} 3`,
		`memory_retrieval_requests_total{outcome="degraded",service="memory-api"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestHTTPMiddlewareCountsStatus(t *testing.T) {
	m := NewHTTPServerMetrics("memory-api")
	h := m.Middleware("memory-api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/memory/retrieve", nil))

	body := scrape(t, m.Handler())
	if !strings.Contains(body, `status="418"`) {
		t.Fatalf("expected recorded status 418:\n%s", body)
	}
}

func TestWorkerMetricsStatus(t *testing.T) {
	m := NewWorkerMetrics("memory-worker")
	m.StartMessage()
	m.FinishMessage("memory-worker", 10*time.Millisecond, errors.New("embed failed"))

	body := scrape(t, m.Handler())
	if !strings.Contains(body, `memory_worker_message_index_total{service="memory-worker",status="error"} 1`) {
		t.Fatalf("expected error status counter:\n%s", body)
	}
}

func TestUpstreamMetricsTrackBreakerState(t *testing.T) {
	server := NewHTTPServerMetrics("memory-api")
	upstream := NewUpstreamMetrics("memory-api", server.Registerer())

	upstream.ObserveRetry("ollama.embed")
	upstream.ObserveBreakerState("ollama.embed", "open")

	body := scrape(t, server.Handler())
	for _, want := range []string{
		`memory_upstream_retries_total{operation="ollama.embed",service="memory-api"} 1`,
		`memory_upstream_breaker_state{operation="ollama.embed",service="memory-api",state="open"} 1`,
		`memory_upstream_breaker_state{operation="ollama.embed",service="memory-api",state="closed"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}
