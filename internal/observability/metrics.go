package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tile outcomes recorded by Metrics.ObserveTile.
const (
	OutcomeRendered    = "rendered"
	OutcomePlaceholder = "placeholder"
	OutcomeError       = "error"
)

// Metrics bundles the Prometheus collectors for tile rendering and the HTTP
// surface. A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	Tiles             *prometheus.CounterVec
	TileDuration      *prometheus.HistogramVec
	SourceFetches     *prometheus.CounterVec
	SourceBytes       prometheus.Histogram
	RotationMismatch  prometheus.Counter
	SourceCacheLookup *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors against reg, defaulting to the global
// registry when nil. Registering twice against the same registry reuses the
// existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{gatherer: gatherer}
	var err error

	if m.Tiles, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drape",
		Subsystem: "tiles",
		Name:      "resolved_total",
		Help:      "Tile requests resolved, labeled by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}

	if m.TileDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "drape",
		Subsystem: "tiles",
		Name:      "resolve_duration_seconds",
		Help:      "Tile resolution latency in seconds, labeled by outcome.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"outcome"})); err != nil {
		return nil, err
	}

	if m.SourceFetches, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drape",
		Subsystem: "source",
		Name:      "fetches_total",
		Help:      "Original image fetches, labeled by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}

	if m.SourceBytes, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "drape",
		Subsystem: "source",
		Name:      "size_bytes",
		Help:      "Size of fetched original images in bytes.",
		Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 8),
	})); err != nil {
		return nil, err
	}

	if m.RotationMismatch, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "drape",
		Subsystem: "tiles",
		Name:      "rotation_size_mismatch_total",
		Help:      "Rotated rasters whose size disagreed with the analytic prediction.",
	})); err != nil {
		return nil, err
	}

	if m.SourceCacheLookup, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drape",
		Subsystem: "source",
		Name:      "cache_lookups_total",
		Help:      "Original image cache lookups, labeled by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}

	if m.HTTPRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drape",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests processed, labeled by route and status.",
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}

	if m.HTTPDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "drape",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})); err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveTile records one resolved tile.
func (m *Metrics) ObserveTile(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Tiles.WithLabelValues(outcome).Inc()
	m.TileDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveFetch records one original image fetch.
func (m *Metrics) ObserveFetch(size int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SourceFetches.WithLabelValues("error").Inc()
		return
	}
	m.SourceFetches.WithLabelValues("ok").Inc()
	m.SourceBytes.Observe(float64(size))
}

// ObserveRotationMismatch records a rotated raster whose size disagreed with
// the crop plan.
func (m *Metrics) ObserveRotationMismatch() {
	if m == nil {
		return
	}
	m.RotationMismatch.Inc()
}

// CacheLookup records a source cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.SourceCacheLookup.WithLabelValues(result).Inc()
}

// Middleware records request counts and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry this Metrics was registered against.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
