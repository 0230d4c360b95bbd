// Package telemetry exposes Prometheus collectors and HTTP middleware for the
// audit relay service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	relayAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_upstream_attempts_total",
			Help: "Total upstream call attempts, labeled by outcome (success, retry, terminal).",
		},
		[]string{"outcome"},
	)

	auditDispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_audit_dispatches_total",
			Help: "Total report dispatch requests, labeled by result (accepted, rejected_quota, rejected_input).",
		},
		[]string{"result"},
	)

	messageDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_message_deliveries_total",
			Help: "Total per-recipient delivery attempts, labeled by outcome (sent, invalid_number, failed).",
		},
		[]string{"outcome"},
	)

	quotaResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_quota_resets_total",
			Help: "Total full-table quota resets performed.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// ObserveRelayAttempt records the outcome of one upstream call attempt.
func ObserveRelayAttempt(outcome string) {
	relayAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAuditDispatch records the result of a report dispatch request.
func ObserveAuditDispatch(result string) {
	auditDispatchesTotal.WithLabelValues(result).Inc()
}

// ObserveDelivery records the outcome of one per-recipient delivery.
func ObserveDelivery(outcome string) {
	messageDeliveriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveQuotaReset records a full quota table reset.
func ObserveQuotaReset() {
	quotaResetsTotal.Inc()
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
