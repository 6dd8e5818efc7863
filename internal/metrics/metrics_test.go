package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// value returns the current value of the counter vec child with labels.
func value(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.WithLabelValues(labels...).Collect(ch)
	var pb dto.Metric
	if err := (<-ch).Write(&pb); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return pb.GetCounter().GetValue()
}

func TestCounters(t *testing.T) {
	m := New()
	m.Mutation("create", true)
	m.Mutation("create", true)
	m.Mutation("update", false)
	m.PersistenceError("corrupt")
	m.Export("csv")
	m.JobStatus("completed")

	if got := value(t, m.mutations, "create", "ok"); got != 2 {
		t.Fatalf("create ok: want 2, got %v", got)
	}
	if got := value(t, m.mutations, "update", "error"); got != 1 {
		t.Fatalf("update error: want 1, got %v", got)
	}
	if got := value(t, m.persistenceErrors, "corrupt"); got != 1 {
		t.Fatalf("corrupt: want 1, got %v", got)
	}
	if got := value(t, m.exports, "csv"); got != 1 {
		t.Fatalf("csv exports: want 1, got %v", got)
	}
	if got := value(t, m.exportJobs, "completed"); got != 1 {
		t.Fatalf("completed jobs: want 1, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Mutation("create", true)
	m.PersistenceError("unavailable")
	m.Export("json")
	m.JobStatus("failed")

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("nil middleware must pass through, got %d", rec.Code)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/expenses/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/expenses/abc", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/expenses/def", nil))

	got := value(t, m.httpRequests, "GET", "GET /api/expenses/{id}", "404")
	if got != 2 {
		t.Fatalf("route counter: want 2, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "expensetracker_http_request_duration_seconds") {
		t.Fatalf("histogram missing from exposition")
	}
}
