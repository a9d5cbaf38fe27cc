package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcome label values for Metrics.LoginsTotal.
const (
	LoginOutcomeSuccess            = "success"
	LoginOutcomeWrongCredentials   = "wrong_credentials"
	LoginOutcomeRateLimitedAddress = "rate_limited_address"
	LoginOutcomeRateLimitedPair    = "rate_limited_pair"
	LoginOutcomeError              = "error"
)

// Metrics holds all Prometheus metrics. A single instance is created in
// main and shared by the HTTP middleware, the auth service and the pool
// samplers.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Auth metrics
	LoginsTotal             *prometheus.CounterVec
	RegistrationsTotal      prometheus.Counter
	TokenRefreshesTotal     *prometheus.CounterVec
	SessionRevocationsTotal *prometheus.CounterVec

	// Mail metrics
	EmailsSentTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge

	// Redis metrics
	RedisConnectionsTotal prometheus.Gauge

	// Business metrics
	UsersTotal prometheus.Gauge
	PostsTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quill_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quill_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(128, 4, 6),
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quill_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(128, 4, 6),
			},
			[]string{"method", "route"},
		),

		// Auth metrics
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_logins_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		RegistrationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_registrations_total",
				Help: "Total number of accounts registered",
			},
		),
		TokenRefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_token_refreshes_total",
				Help: "Access token refreshes by outcome",
			},
			[]string{"outcome"},
		),
		SessionRevocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_session_revocations_total",
				Help: "Refresh sessions revoked, by reason",
			},
			[]string{"reason"},
		),

		// Mail metrics
		EmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_emails_sent_total",
				Help: "Transactional emails by kind and delivery status",
			},
			[]string{"kind", "status"},
		),

		// Database metrics
		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quill_db_connections_open",
				Help: "Open connections in the database pool",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quill_db_connections_in_use",
				Help: "Database connections currently in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quill_db_connections_idle",
				Help: "Idle connections in the database pool",
			},
		),

		// Redis metrics
		RedisConnectionsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quill_redis_connections_total",
				Help: "Total connections in the Redis pool",
			},
		),

		// Business metrics
		UsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quill_users_total",
				Help: "Number of user accounts",
			},
		),
		PostsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quill_posts_total",
				Help: "Number of published posts",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.LoginsTotal,
		m.RegistrationsTotal,
		m.TokenRefreshesTotal,
		m.SessionRevocationsTotal,
		m.EmailsSentTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.RedisConnectionsTotal,
		m.UsersTotal,
		m.PostsTotal,
	)

	return m
}

// NewNopMetrics returns a Metrics set registered on a private registry.
// Components that accept an optional *Metrics use it as the default so
// callers never have to nil-check.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// UpdateDBStats copies a sql.DBStats snapshot into the pool gauges.
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
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

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// The route label uses the matched mux route template rather than the raw
// path, so label cardinality stays bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, route).Observe(float64(r.ContentLength))
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// routeTemplate returns the matched route template, e.g. "/api/posts/{post_id}".
// Router middleware runs after matching, so CurrentRoute is populated; requests
// the router never matched fall back to a fixed label.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
