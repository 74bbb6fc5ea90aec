package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveCompletion("recorded", 2)
	m.ObserveCompletion("already_completed", 1)
	m.ObserveCompletion("recorded", 0)
	m.ObserveRedemption("redeemed")

	if got := testutil.ToFloat64(m.completions.WithLabelValues("recorded")); got != 2 {
		t.Errorf("recorded = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.redemptions.WithLabelValues("redeemed")); got != 1 {
		t.Errorf("redeemed = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCompletion("recorded", 1)
	m.ObserveRequest("GET /health", "GET", 200, time.Millisecond)
	m.ObserveScan("ok")
	m.ObserveArchive("completed")
	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}
}

func TestHandlerExposesRequests(t *testing.T) {
	m := New()
	m.ObserveRequest("GET /api/progress", http.MethodGet, 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `stampcard_http_requests_total{method="GET",route="GET /api/progress",status="200"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", rec.Body.String())
	}
}
