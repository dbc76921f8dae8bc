package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics error: %v", err)
	}

	m.ObserveTile(OutcomePlaceholder, time.Millisecond)
	m.ObserveTile(OutcomePlaceholder, time.Millisecond)
	m.ObserveTile(OutcomeRendered, 40*time.Millisecond)
	m.ObserveFetch(1024, nil)
	m.ObserveFetch(0, errors.New("boom"))
	m.ObserveRotationMismatch()
	m.CacheLookup(true)
	m.CacheLookup(false)

	if got := testutil.ToFloat64(m.Tiles.WithLabelValues(OutcomePlaceholder)); got != 2 {
		t.Errorf("placeholder tiles = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Tiles.WithLabelValues(OutcomeRendered)); got != 1 {
		t.Errorf("rendered tiles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SourceFetches.WithLabelValues("error")); got != 1 {
		t.Errorf("fetch errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RotationMismatch); got != 1 {
		t.Errorf("rotation mismatches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SourceCacheLookup.WithLabelValues("hit")); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
}

func TestNewMetricsTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("first NewMetrics error: %v", err)
	}
	b, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("second NewMetrics error: %v", err)
	}
	if a.Tiles != b.Tiles {
		t.Error("second NewMetrics registered new collectors")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTile(OutcomeError, time.Second)
	m.ObserveFetch(1, nil)
	m.ObserveRotationMismatch()
	m.CacheLookup(true)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/tiles/{z}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/metrics", m.Handler().ServeHTTP)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tiles/14", nil))

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "/tiles/{z}", "404")); got != 1 {
		t.Errorf("requests for /tiles/{z} = %v, want 1", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "drape_http_requests_total") {
		t.Error("metrics endpoint does not expose drape_http_requests_total")
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("InitTracing error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown error: %v", err)
	}
}

func TestExporterFromConfigRejectsUnknown(t *testing.T) {
	if _, err := exporterFromConfig(context.Background(), TracingConfig{Exporter: "zipkin"}, nil); err == nil {
		t.Error("exporterFromConfig accepted an unknown exporter")
	}
}
