package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the ledger service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	postingsTotal     *prometheus.CounterVec
	guardRejections   *prometheus.CounterVec
	depreciationRows  prometheus.Counter
	integrityFindings *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_ledger_postings_total",
		Help: "Journal entries posted, by kind (regular, reversal, opening, depreciation).",
	}, []string{"kind"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_guard_rejections_total",
		Help: "Mutation guard rejections by entity and rule.",
	}, []string{"entity", "rule"})
	deprRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_depreciation_rows_posted_total",
		Help: "Depreciation schedule rows posted to the ledger.",
	})
	findings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_gl_integrity_findings_total",
		Help: "GL integrity scan findings by check.",
	}, []string{"check"})
	registry.MustRegister(requests, duration, postings, rejections, deprRows, findings)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		postingsTotal:     postings,
		guardRejections:   rejections,
		depreciationRows:  deprRows,
		integrityFindings: findings,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// CountPosting increments the posting counter for the given kind.
func (m *Metrics) CountPosting(kind string) {
	if m == nil {
		return
	}
	m.postingsTotal.WithLabelValues(kind).Inc()
}

// CountGuardRejection increments the guard rejection counter.
func (m *Metrics) CountGuardRejection(entity, rule string) {
	if m == nil {
		return
	}
	m.guardRejections.WithLabelValues(entity, rule).Inc()
}

// CountDepreciationRows adds posted depreciation rows.
func (m *Metrics) CountDepreciationRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.depreciationRows.Add(float64(n))
}

// CountIntegrityFinding records one GL integrity finding.
func (m *Metrics) CountIntegrityFinding(check string) {
	if m == nil {
		return
	}
	m.integrityFindings.WithLabelValues(check).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
