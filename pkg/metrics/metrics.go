// Package metrics exposes Prometheus instrumentation for the portal.
// All methods are nil-safe so components can run without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "labportal"

// Metrics holds all portal metrics
type Metrics struct {
	// Inbound HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Outbound calls to the lab backend and the OCR engine
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec

	// OCR intake
	IntakeJobs      *prometheus.CounterVec
	IntakeDuration  prometheus.Histogram
	IntakeCacheHits prometheus.Counter

	// Uploads
	FilesUploaded *prometheus.CounterVec
	UploadBytes   prometheus.Counter
}

// New creates and registers all portal metrics with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),

		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Outbound requests by service, operation and outcome",
		}, []string{"service", "operation", "outcome"}),

		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Outbound request latency by service and operation",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15, 30, 60},
		}, []string{"service", "operation"}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),

		IntakeJobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_jobs_total",
			Help:      "OCR intake jobs by final status and processor",
		}, []string{"status", "processor"}),

		IntakeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "intake_job_duration_seconds",
			Help:      "Time from job start to mapped form values",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),

		IntakeCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_cache_hits_total",
			Help:      "OCR results served from the content-hash cache",
		}),

		FilesUploaded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_uploaded_total",
			Help:      "Uploaded files by kind and outcome",
		}, []string{"kind", "outcome"}),

		UploadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes forwarded to the lab backend",
		}),
	}
}

// ObserveUpstream records one outbound call
func (m *Metrics) ObserveUpstream(service, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequests.WithLabelValues(service, operation, outcome).Inc()
	m.UpstreamLatency.WithLabelValues(service, operation).Observe(d.Seconds())
}

// SetBreakerState records a circuit breaker transition
func (m *Metrics) SetBreakerState(name string, state int) {
	if m != nil {
		m.BreakerState.WithLabelValues(name).Set(float64(state))
	}
}

// ObserveIntake records a finished OCR intake job
func (m *Metrics) ObserveIntake(status, processor string, d time.Duration) {
	if m == nil {
		return
	}
	m.IntakeJobs.WithLabelValues(status, processor).Inc()
	m.IntakeDuration.Observe(d.Seconds())
}

// IncIntakeCacheHit counts an OCR result served from cache
func (m *Metrics) IncIntakeCacheHit() {
	if m != nil {
		m.IntakeCacheHits.Inc()
	}
}

// ObserveUpload records one uploaded file
func (m *Metrics) ObserveUpload(kind string, size int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.FilesUploaded.WithLabelValues(kind, "error").Inc()
		return
	}
	m.FilesUploaded.WithLabelValues(kind, "ok").Inc()
	m.UploadBytes.Add(float64(size))
}

// Middleware records request counts and latency by chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
