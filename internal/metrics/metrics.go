// Package metrics provides Prometheus instrumentation for Doaqui.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application metric collectors.
// A nil *Metrics is valid and records nothing, so instrumentation points
// never need to guard against a disabled metrics pipeline.
type Metrics struct {
	registry *prometheus.Registry

	lifecycleTransitions *prometheus.CounterVec
	reservationsReleased prometheus.Counter
	httpDuration         *prometheus.HistogramVec
}

// New creates and registers the application metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		lifecycleTransitions: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "doaqui_product_lifecycle_transitions_total",
			Help: "Product lifecycle transitions by operation.",
		}, []string{"operation"}),
		reservationsReleased: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "doaqui_reservations_released_total",
			Help: "Reservations returned to available by the sweeper.",
		}),
		httpDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "doaqui_http_request_duration_seconds",
			Help:    "HTTP request duration by method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}

	return m
}

// ObserveTransition records a lifecycle transition.
func (m *Metrics) ObserveTransition(operation string) {
	if m == nil {
		return
	}
	m.lifecycleTransitions.WithLabelValues(operation).Inc()
}

// ObserveReleased records reservations released by the sweeper.
func (m *Metrics) ObserveReleased(count int64) {
	if m == nil || count == 0 {
		return
	}
	m.reservationsReleased.Add(float64(count))
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware instruments request durations.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		m.httpDuration.
			WithLabelValues(r.Method, strconv.Itoa(recorder.status)).
			Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
