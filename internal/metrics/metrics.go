// Package metrics defines Prometheus metrics for the portal.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portail_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portail_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portail_crud_operations_total",
			Help: "CRUD operations by model, operation and outcome",
		},
		[]string{"model", "operation", "outcome"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portail_crud_operation_duration_seconds",
			Help:    "CRUD operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model", "operation"},
	)

	AuditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portail_audit_write_failures_total",
			Help: "Audit log entries that could not be written",
		},
	)

	FormSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portail_form_submissions_total",
			Help: "Form submissions by model and outcome",
		},
		[]string{"model", "outcome"},
	)
)

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
	OutcomeVetoed  = "vetoed"
	OutcomeBusy    = "busy"
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal,
		OperationsTotal, OperationDuration,
		AuditWriteFailures, FormSubmissions,
	)
}
