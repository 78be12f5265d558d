package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the enrollment engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	enrollments     *prometheus.CounterVec
	skips           *prometheus.CounterVec
	txRetries       prometheus.Counter
	batchDuration   *prometheus.HistogramVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	enrollments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_enrollments_total",
		Help: "Successful enrollments by section origin",
	}, []string{"origin"})

	skips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_skips_total",
		Help: "Enrollment skips by reason",
	}, []string{"reason"})

	txRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_tx_retries_total",
		Help: "Enrollment transaction retries after transient conflicts",
	})

	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_batch_duration_seconds",
		Help:    "Duration of activation and close batch passes",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"pass"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, enrollments, skips, txRetries, batchDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		enrollments:     enrollments,
		skips:           skips,
		txRetries:       txRetries,
		batchDuration:   batchDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordEnrollment counts a successful enrollment, labelled by whether the
// section already existed or was synthesized.
func (m *MetricsService) RecordEnrollment(synthesized bool) {
	if m == nil {
		return
	}
	origin := "existing"
	if synthesized {
		origin = "synthesized"
	}
	m.enrollments.WithLabelValues(origin).Inc()
}

// RecordSkip counts a skipped student/course pair.
func (m *MetricsService) RecordSkip(reason string) {
	if m == nil {
		return
	}
	m.skips.WithLabelValues(reason).Inc()
}

// RecordTxRetry counts a transient transaction retry.
func (m *MetricsService) RecordTxRetry() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

// ObserveBatch records the wall time of a batch pass.
func (m *MetricsService) ObserveBatch(pass string, duration time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.WithLabelValues(pass).Observe(duration.Seconds())
}
