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

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Authorization and quota
	AuthzDecisionsTotal *prometheus.CounterVec
	QuotaDenialsTotal   *prometheus.CounterVec

	// Invitation lifecycle
	InvitationEventsTotal     *prometheus.CounterVec
	NotificationFailuresTotal *prometheus.CounterVec

	// Content generation
	GenerationRequestsTotal *prometheus.CounterVec
	GenerationDuration      prometheus.Histogram
	RateLimitedTotal        *prometheus.CounterVec

	// Database pool
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitCount        prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inkwell_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inkwell_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_authz_decisions_total",
				Help: "Workspace authorization decisions by outcome and reason",
			},
			[]string{"decision", "reason"},
		),
		QuotaDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_quota_denials_total",
				Help: "Requests denied because a subscription limit was reached",
			},
			[]string{"resource", "tier"},
		),

		InvitationEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_invitation_events_total",
				Help: "Membership lifecycle transitions",
			},
			[]string{"event"},
		),
		NotificationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_notification_failures_total",
				Help: "Invitation notifications that could not be delivered",
			},
			[]string{"notifier"},
		),

		GenerationRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_generation_requests_total",
				Help: "Content generation calls by outcome and key source",
			},
			[]string{"status", "key_source"},
		),
		GenerationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "inkwell_generation_duration_seconds",
				Help:    "Latency of the upstream generation provider",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_rate_limited_total",
				Help: "Requests rejected by the per-user rate limiter",
			},
			[]string{"backend"},
		),

		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inkwell_db_connections_open",
			Help: "Number of established database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inkwell_db_connections_in_use",
			Help: "Number of database connections currently in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inkwell_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBWaitCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inkwell_db_connections_wait_count",
			Help: "Total number of connections waited for",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthzDecisionsTotal,
		m.QuotaDenialsTotal,
		m.InvitationEventsTotal,
		m.NotificationFailuresTotal,
		m.GenerationRequestsTotal,
		m.GenerationDuration,
		m.RateLimitedTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitCount,
	)

	return m
}

// RecordAuthzDecision counts an authorization decision. Safe on a nil receiver.
func (m *Metrics) RecordAuthzDecision(allowed bool, reason string) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.AuthzDecisionsTotal.WithLabelValues(decision, reason).Inc()
}

// RecordQuotaDenial counts a hard quota rejection. Safe on a nil receiver.
func (m *Metrics) RecordQuotaDenial(resource, tier string) {
	if m == nil {
		return
	}
	m.QuotaDenialsTotal.WithLabelValues(resource, tier).Inc()
}

// RecordInvitationEvent counts a membership lifecycle transition. Safe on a nil receiver.
func (m *Metrics) RecordInvitationEvent(event string) {
	if m == nil {
		return
	}
	m.InvitationEventsTotal.WithLabelValues(event).Inc()
}

// RecordNotificationFailure counts a failed notification. Safe on a nil receiver.
func (m *Metrics) RecordNotificationFailure(notifier string) {
	if m == nil {
		return
	}
	m.NotificationFailuresTotal.WithLabelValues(notifier).Inc()
}

// RecordGeneration counts a generation call and its latency. Safe on a nil receiver.
func (m *Metrics) RecordGeneration(status, keySource string, d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationRequestsTotal.WithLabelValues(status, keySource).Inc()
	m.GenerationDuration.Observe(d.Seconds())
}

// RecordRateLimited counts a rate-limited request. Safe on a nil receiver.
func (m *Metrics) RecordRateLimited(backend string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(backend).Inc()
}

// RecordDBStats copies connection pool statistics into gauges
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBWaitCount.Set(float64(stats.WaitCount))
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

// routeLabel returns the mux path template so ids do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Use it as a mux.Router middleware so the matched route is known.
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

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, gatherer prometheus.Gatherer) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
