package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	DecisionsTotal     *prometheus.CounterVec
	DecisionDuration   prometheus.Histogram
	FallbackTotal      *prometheus.CounterVec
	RoleNotFoundTotal  prometheus.Counter
	CatalogReseedTotal prometheus.Counter

	// Customization cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizdeck_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quizdeck_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizdeck_authz_decisions_total",
				Help: "Total access decisions by outcome reason code",
			},
			[]string{"reason", "granted"},
		),
		DecisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quizdeck_authz_decision_duration_seconds",
				Help:    "Access decision evaluation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 10, 6),
			},
		),
		FallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizdeck_authz_org_admin_fallback_total",
				Help: "Times the org-admin fallback granted access despite a role lookup failure",
			},
			[]string{"check"},
		),
		RoleNotFoundTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quizdeck_authz_role_not_found_total",
				Help: "Role catalog lookups that failed during access decisions",
			},
		),
		CatalogReseedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quizdeck_role_catalog_reseed_total",
				Help: "Role catalog re-seed operations",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizdeck_customization_cache_hits_total",
				Help: "Customization cache hits by layer",
			},
			[]string{"layer"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizdeck_customization_cache_misses_total",
				Help: "Customization cache misses by layer",
			},
			[]string{"layer"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quizdeck_db_connections_active",
				Help: "Active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quizdeck_db_connections_idle",
				Help: "Idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DecisionsTotal,
		m.DecisionDuration,
		m.FallbackTotal,
		m.RoleNotFoundTotal,
		m.CatalogReseedTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// ObserveDecision records a single access decision outcome
func (m *Metrics) ObserveDecision(reason string, granted bool, duration time.Duration) {
	m.DecisionsTotal.WithLabelValues(reason, strconv.FormatBool(granted)).Inc()
	m.DecisionDuration.Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler for this metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware records request counts and latencies per route
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
