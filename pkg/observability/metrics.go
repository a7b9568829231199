package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Authorization metrics
	DecisionsTotal    *prometheus.CounterVec
	CacheLookupsTotal *prometheus.CounterVec

	// Audit metrics
	AuditEventsPurgedTotal prometheus.Counter
	AuditCleanupFailures   prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glossa_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "glossa_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "glossa_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glossa_rbac_decisions_total",
				Help: "Authorization decisions by check mode and result",
			},
			[]string{"check", "result"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glossa_rbac_cache_lookups_total",
				Help: "Effective permission cache lookups by result",
			},
			[]string{"result"},
		),

		AuditEventsPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "glossa_audit_events_purged_total",
				Help: "Audit events removed by retention cleanup",
			},
		),
		AuditCleanupFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "glossa_audit_cleanup_failures_total",
				Help: "Failed audit retention cleanup runs",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.DecisionsTotal,
		m.CacheLookupsTotal,
		m.AuditEventsPurgedTotal,
		m.AuditCleanupFailures,
	)

	return m
}

// RegisterDBStats exports connection pool statistics for db
func RegisterDBStats(registry *prometheus.Registry, db *sql.DB, name string) {
	registry.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// RecordDecision counts one authorization decision
func (m *Metrics) RecordDecision(check, result string) {
	m.DecisionsTotal.WithLabelValues(check, result).Inc()
}

// RecordCacheLookup counts one effective permission cache lookup
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordAuditCleanup records the outcome of a retention run
func (m *Metrics) RecordAuditCleanup(purged int64, err error) {
	if err != nil {
		m.AuditCleanupFailures.Inc()
		return
	}
	m.AuditEventsPurgedTotal.Add(float64(purged))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the matched route template so path ids do not
// explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests. Install it with
// router.Use so the matched route is known.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
