package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/eventradar/radar/internal/ingestion"
)

func TestHTTPCollectorRecordsMetrics(t *testing.T) {
	collector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}

	handlerInvoked := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerInvoked = true
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	instrumented := collector.InstrumentHandler(handler)

	req := httptest.NewRequest(http.MethodGet, "/wp-login.php", nil)
	rr := httptest.NewRecorder()

	instrumented.ServeHTTP(rr, req)

	if !handlerInvoked {
		t.Fatal("expected handler to be invoked")
	}

	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	metricsRR := httptest.NewRecorder()
	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	collector.Handler().ServeHTTP(metricsRR, metricsReq)

	if metricsRR.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", metricsRR.Code)
	}

	body := metricsRR.Body.String()
	if !strings.Contains(body, `radar_http_requests_total{method="GET",route="unmatched",status="202"} 1`) {
		t.Fatalf("requests_total metric not recorded, body=%q", body)
	}

	if strings.Contains(body, "wp-login") {
		t.Fatalf("expected raw path kept out of labels, body=%q", body)
	}

	if !strings.Contains(body, `radar_http_request_duration_seconds_count{method="GET",route="unmatched"} 1`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
}

func TestHTTPCollectorUsesRoutePattern(t *testing.T) {
	collector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/admin/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := collector.InstrumentHandler(mux)

	for _, id := range []string{"a1", "b2"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/admin/events/"+id, nil))
	}

	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `radar_http_requests_total{method="GET",route="GET /api/admin/events/{id}",status="200"} 2`
	if !strings.Contains(rr.Body.String(), want) {
		t.Fatalf("expected %q in body=%q", want, rr.Body.String())
	}
}

type deadlineRecorder struct {
	*httptest.ResponseRecorder
	cleared bool
}

func (d *deadlineRecorder) SetWriteDeadline(t time.Time) error {
	d.cleared = t.IsZero()
	return nil
}

func TestHTTPCollectorKeepsResponseController(t *testing.T) {
	collector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}

	var deadlineErr error
	var inFlight float64
	h := collector.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight = testutil.ToFloat64(collector.inFlight)
		deadlineErr = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	}))

	rec := &deadlineRecorder{ResponseRecorder: httptest.NewRecorder()}
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/runs", nil))

	if deadlineErr != nil || !rec.cleared {
		t.Errorf("expected write deadline cleared through the wrapper, got err=%v cleared=%v", deadlineErr, rec.cleared)
	}
	if inFlight != 1 {
		t.Errorf("expected 1 in-flight request while serving, got %v", inFlight)
	}
	if got := testutil.ToFloat64(collector.inFlight); got != 0 {
		t.Errorf("expected 0 in-flight requests afterwards, got %v", got)
	}
}

func TestPipelineCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector, err := NewPipelineCollector(registry)
	if err != nil {
		t.Fatalf("NewPipelineCollector returned error: %v", err)
	}

	collector.ObserveSource(ingestion.SourceReport{Source: "kulturhaus", Status: ingestion.SourceOK, Found: 5, Added: 3, Duplicates: 1, Dropped: 1, DurationMs: 2500})
	collector.ObserveSource(ingestion.SourceReport{Source: "stadthalle", Status: ingestion.SourceFailed, ErrorCategory: "fetch_error"})
	collector.ObserveSource(ingestion.SourceReport{Source: "museum", Status: ingestion.SourceSkipped})

	if got := testutil.ToFloat64(collector.candidates.WithLabelValues("kulturhaus", "added")); got != 3 {
		t.Errorf("expected 3 added, got %v", got)
	}
	if got := testutil.ToFloat64(collector.sources.WithLabelValues("stadthalle", "failed", "fetch_error")); got != 1 {
		t.Errorf("expected 1 failed source, got %v", got)
	}
	if got := testutil.CollectAndCount(collector.duration); got != 2 {
		t.Errorf("expected duration series for 2 sources, got %d", got)
	}
}
