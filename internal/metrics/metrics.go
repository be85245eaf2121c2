// Package metrics holds the Prometheus collectors served on /metrics: HTTP
// traffic on the feeds and admin API, and per-source pipeline outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "radar"

// unmatchedRoute labels requests no route pattern claimed, so crawlers
// probing random paths on the public feeds cannot grow the series count.
const unmatchedRoute = "unmatched"

// HTTPCollector records request counts, latency and in-flight requests per
// route pattern.
type HTTPCollector struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTPCollector registers on a fresh registry.
func NewHTTPCollector() (*HTTPCollector, error) {
	return NewHTTPCollectorWithRegistry(prometheus.NewRegistry())
}

// NewHTTPCollectorWithRegistry registers the HTTP metrics on a shared
// registry so pipeline and runtime metrics come out of the same endpoint.
func NewHTTPCollectorWithRegistry(registry *prometheus.Registry) (*HTTPCollector, error) {
	c := &HTTPCollector{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served, by route pattern and status code.",
		}, []string{"method", "route", "status"}),
		// Feed reads are fast; admin runs can take minutes.
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request latency by route pattern.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 10, 60, 300, 1200},
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Requests currently being served.",
		}),
	}

	for _, col := range []prometheus.Collector{c.requests, c.duration, c.inFlight} {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (c *HTTPCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next and records every request under the route
// pattern the mux matched.
func (c *HTTPCollector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.inFlight.Inc()
		defer c.inFlight.Dec()

		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = unmatchedRoute
		}
		c.requests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		c.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the connection, which the
// admin run handler needs to lift the write deadline.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
