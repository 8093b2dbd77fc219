package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus registry and HTTP instruments.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
}

// NewMetrics builds a registry with Go runtime and process collectors plus
// the HTTP request instruments.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helix",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests processed, by method, path pattern, and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "helix",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, by method and path pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "helix",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.requestsInFlight)
	return m
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WithHTTPMetrics instruments mux. The path label uses the matched route
// pattern, not the raw URL, so cardinality stays bounded.
func (m *Metrics) WithHTTPMetrics(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(lrw, r)

		_, path := mux.Handler(r)
		if path == "" {
			path = "unmatched"
		}
		m.requestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(lrw.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
