// Package metrics defines the Prometheus metrics of the auth service.
//
// Metric naming follows Prometheus conventions:
//   - escuela_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric below plus the Go runtime and process collectors.
var Registry = prometheus.NewRegistry()

var (
	// LoginsTotal counts login attempts by requested role and outcome.
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escuela_logins_total",
			Help: "Total login attempts by role and outcome.",
		},
		[]string{"role", "outcome"},
	)

	// SessionsCreatedTotal counts sessions bound to an account.
	SessionsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escuela_sessions_created_total",
			Help: "Total authenticated sessions established.",
		},
	)

	// SessionsExpiredTotal counts sessions destroyed for exceeding the idle timeout.
	SessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escuela_sessions_expired_total",
			Help: "Total sessions destroyed by the idle timeout.",
		},
	)

	// CSRFValidationsTotal counts token validations by result.
	CSRFValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escuela_csrf_validations_total",
			Help: "Total CSRF token validations by result.",
		},
		[]string{"result"},
	)

	// HTTPRequestDuration is a histogram of request latency.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "escuela_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// AuditSinkFailuresTotal counts audit writes that a sink dropped.
	AuditSinkFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escuela_audit_sink_failures_total",
			Help: "Total audit events a sink failed to record.",
		},
		[]string{"sink"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		LoginsTotal,
		SessionsCreatedTotal,
		SessionsExpiredTotal,
		CSRFValidationsTotal,
		HTTPRequestDuration,
		AuditSinkFailuresTotal,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordLogin records the outcome of one login attempt.
func RecordLogin(role, outcome string) {
	if role == "" {
		role = "unknown"
	}
	LoginsTotal.WithLabelValues(role, outcome).Inc()
	if outcome == "success" {
		SessionsCreatedTotal.Inc()
	}
}

// RecordSessionExpired records a session removed by the idle timeout.
func RecordSessionExpired() {
	SessionsExpiredTotal.Inc()
}

// RecordCSRFValidation records the result of one token validation.
func RecordCSRFValidation(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	CSRFValidationsTotal.WithLabelValues(result).Inc()
}

// RecordRequest records the latency of one HTTP request.
func RecordRequest(method, route, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// RecordAuditSinkFailure records an audit event dropped by a sink.
func RecordAuditSinkFailure(sink string) {
	AuditSinkFailuresTotal.WithLabelValues(sink).Inc()
}
