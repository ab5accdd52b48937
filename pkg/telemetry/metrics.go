// Package telemetry provides the Prometheus metrics surface and the
// OpenTelemetry tracing bootstrap for the routing core.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the routing pipeline
type Metrics struct {
	// Tenant resolution metrics
	resolutionsTotal *prometheus.CounterVec
	trustDecisions   *prometheus.CounterVec

	// Base-path metrics
	canonicalRedirects prometheus.Counter

	// Rewrite stage metrics
	rewritesTotal   *prometheus.CounterVec
	rewriteDuration prometheus.Histogram

	// Sitemap cache metrics
	sitemapLookups   *prometheus.CounterVec
	sitemapEvictions prometheus.Counter

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// Resolution outcome labels recorded by RecordResolution.
const (
	OutcomeResolved        = "resolved"
	OutcomeProxyFallback   = "proxy_fallback"
	OutcomeAdmin           = "admin"
	OutcomePlatformDefault = "platform_default"
	OutcomeUnknown         = "unknown"
)

// NewMetrics creates a new metrics instance with all pipeline metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_tenant_resolutions_total",
				Help: "Total number of tenant resolution attempts by outcome",
			},
			[]string{"outcome"},
		),

		trustDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_trust_decisions_total",
				Help: "Trust gate evaluations by trusted and authenticated result",
			},
			[]string{"trusted", "authenticated"},
		),

		canonicalRedirects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "platform_canonical_redirects_total",
				Help: "Total number of 301 redirects issued to keep the base path canonical",
			},
		),

		rewritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_html_rewrites_total",
				Help: "Total number of response rewrite stage completions by result",
			},
			[]string{"result"},
		),

		rewriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "platform_html_rewrite_duration_seconds",
				Help:    "Time spent rewriting buffered HTML responses",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
		),

		sitemapLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_sitemap_cache_lookups_total",
				Help: "Sitemap cache lookups by hit/miss/error",
			},
			[]string{"result"},
		),

		sitemapEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "platform_sitemap_cache_evictions_total",
				Help: "Sitemap cache entries dropped by TTL cleanup or invalidation",
			},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		registry: registry,
	}

	// Register all metrics
	registry.MustRegister(
		m.resolutionsTotal,
		m.trustDecisions,
		m.canonicalRedirects,
		m.rewritesTotal,
		m.rewriteDuration,
		m.sitemapLookups,
		m.sitemapEvictions,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// RecordResolution records a tenant resolution attempt by outcome
func (m *Metrics) RecordResolution(outcome string) {
	m.resolutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordTrustDecision records a trust gate evaluation
func (m *Metrics) RecordTrustDecision(trusted, authenticated bool) {
	m.trustDecisions.WithLabelValues(strconv.FormatBool(trusted), strconv.FormatBool(authenticated)).Inc()
}

// RecordCanonicalRedirect records an issued base-path redirect
func (m *Metrics) RecordCanonicalRedirect() {
	m.canonicalRedirects.Inc()
}

// RecordRewrite records a completed rewrite stage flush
func (m *Metrics) RecordRewrite(result string, duration time.Duration) {
	m.rewritesTotal.WithLabelValues(result).Inc()
	m.rewriteDuration.Observe(duration.Seconds())
}

// RecordSitemapLookup records a sitemap cache lookup result
func (m *Metrics) RecordSitemapLookup(result string) {
	m.sitemapLookups.WithLabelValues(result).Inc()
}

// RecordSitemapEviction records dropped sitemap cache entries
func (m *Metrics) RecordSitemapEviction(count int) {
	m.sitemapEvictions.Add(float64(count))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware creates HTTP middleware that records request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
