// Package telemetry exposes Prometheus metrics for the HTTP server and the
// calculator: request counters and latency histograms, computations by
// protocol, fired advisories and rejected input fields.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// TelemetryConfig holds all configuration for the telemetry provider.
type TelemetryConfig struct {
	ServiceName    string `json:"service_name"`
	ServiceVersion string `json:"service_version"`
	Environment    string `json:"environment"`
	MetricsEnabled *bool  `json:"metrics_enabled"` // nil = use default (true)
}

// metricsOn returns whether metrics are enabled (defaults to true).
func (c *TelemetryConfig) metricsOn() bool {
	if c.MetricsEnabled == nil {
		return true
	}
	return *c.MetricsEnabled
}

func (c *TelemetryConfig) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "vetfluid"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// BoolPtr is a helper for TelemetryConfig.MetricsEnabled.
func BoolPtr(b bool) *bool {
	return &b
}

// defaultDurationBuckets are the request duration buckets in seconds.
var defaultDurationBuckets = []float64{
	0.001, 0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0,
}

// ---------------------------------------------------------------------------
// TelemetryProvider
// ---------------------------------------------------------------------------

// TelemetryProvider owns a private Prometheus registry and every collector
// registered on it.
type TelemetryProvider struct {
	cfg      TelemetryConfig
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	activeRequests prometheus.Gauge

	computations       *prometheus.CounterVec
	advisories         *prometheus.CounterVec
	validationFailures *prometheus.CounterVec

	dbPoolActive prometheus.Gauge
	dbPoolIdle   prometheus.Gauge
}

// NewTelemetryProvider creates the provider and registers its collectors.
func NewTelemetryProvider(cfg TelemetryConfig) *TelemetryProvider {
	cfg.applyDefaults()

	constLabels := prometheus.Labels{
		"service": cfg.ServiceName,
		"env":     cfg.Environment,
	}
	tp := &TelemetryProvider{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_server_requests_total",
			Help:        "HTTP requests by method, route and status code.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_server_request_duration_seconds",
			Help:        "HTTP request latency.",
			ConstLabels: constLabels,
			Buckets:     defaultDurationBuckets,
		}, []string{"method", "route", "status_code"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "http_server_active_requests",
			Help:        "Requests currently being served.",
			ConstLabels: constLabels,
		}),
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fluidtherapy_computations_total",
			Help:        "Completed fluid therapy computations by protocol.",
			ConstLabels: constLabels,
		}, []string{"protocol"}),
		advisories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fluidtherapy_advisories_total",
			Help:        "Advisories raised by kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fluidtherapy_validation_failures_total",
			Help:        "Rejected requests by offending field.",
			ConstLabels: constLabels,
		}, []string{"field"}),
		dbPoolActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "db_pool_active_connections",
			Help:        "Acquired database connections.",
			ConstLabels: constLabels,
		}),
		dbPoolIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "db_pool_idle_connections",
			Help:        "Idle database connections.",
			ConstLabels: constLabels,
		}),
	}

	tp.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		tp.httpRequests,
		tp.httpDuration,
		tp.activeRequests,
		tp.computations,
		tp.advisories,
		tp.validationFailures,
		tp.dbPoolActive,
		tp.dbPoolIdle,
	)
	return tp
}

// Registry returns the provider's registry, mainly for tests.
func (tp *TelemetryProvider) Registry() *prometheus.Registry {
	return tp.registry
}

// ---------------------------------------------------------------------------
// Domain metrics
// ---------------------------------------------------------------------------

// ComputationDone counts a finished computation and each advisory it raised.
func (tp *TelemetryProvider) ComputationDone(protocol string, advisories []string) {
	if !tp.cfg.metricsOn() {
		return
	}
	tp.computations.WithLabelValues(protocol).Inc()
	for _, a := range advisories {
		tp.advisories.WithLabelValues(a).Inc()
	}
}

// ValidationFailed counts a rejected request.
func (tp *TelemetryProvider) ValidationFailed(field string) {
	if !tp.cfg.metricsOn() {
		return
	}
	tp.validationFailures.WithLabelValues(field).Inc()
}

// ---------------------------------------------------------------------------
// HealthMetrics
// ---------------------------------------------------------------------------

// HealthMetricsRecorder provides methods to update health-related gauges.
type HealthMetricsRecorder struct {
	tp *TelemetryProvider
}

// HealthMetrics returns a recorder for health-related metrics.
func (tp *TelemetryProvider) HealthMetrics() *HealthMetricsRecorder {
	return &HealthMetricsRecorder{tp: tp}
}

// SetDBPoolActive sets the db_pool_active_connections gauge.
func (h *HealthMetricsRecorder) SetDBPoolActive(n int64) {
	h.tp.dbPoolActive.Set(float64(n))
}

// SetDBPoolIdle sets the db_pool_idle_connections gauge.
func (h *HealthMetricsRecorder) SetDBPoolIdle(n int64) {
	h.tp.dbPoolIdle.Set(float64(n))
}

// ---------------------------------------------------------------------------
// MetricsMiddleware
// ---------------------------------------------------------------------------

// MetricsMiddleware returns an Echo middleware that records HTTP server metrics.
func (tp *TelemetryProvider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !tp.cfg.metricsOn() {
				return next(c)
			}

			tp.activeRequests.Inc()
			defer tp.activeRequests.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler write the status before it is read.
				c.Error(err)
			}

			// Route pattern, not the raw path, to bound label cardinality.
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method

			tp.httpRequests.WithLabelValues(method, route, status).Inc()
			tp.httpDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// ---------------------------------------------------------------------------
// PrometheusHandler
// ---------------------------------------------------------------------------

// PrometheusHandler serves the registry in Prometheus text exposition format.
func (tp *TelemetryProvider) PrometheusHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(tp.registry, promhttp.HandlerOpts{}))
}
