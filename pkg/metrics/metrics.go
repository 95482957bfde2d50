// Package metrics provides Prometheus metrics for Junction connectors and
// the webhook receiver.
//
// # Overview
//
// All metrics are registered through promauto at package init and shared by
// every connector instance; per-connector dimensions are carried in labels.
//
// # Basic Usage
//
//	// Record a retried operation
//	metrics.OperationAttempts.WithLabelValues("jira-prod", "create_issue", "failure").Inc()
//
//	// Track operation latency
//	timer := metrics.NewTimer()
//	doWork()
//	metrics.OperationDuration.WithLabelValues("jira-prod", "create_issue").Observe(timer.Stop().Seconds())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationAttempts counts retry-wrapped operation attempts.
	// Labels: connector (instance ID), operation, status (success/failure/retry)
	OperationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "junction_operation_attempts_total",
			Help: "Total retry-wrapped operation attempts",
		},
		[]string{"connector", "operation", "status"},
	)

	// OperationDuration tracks retry-wrapped operation latency in seconds.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "junction_operation_duration_seconds",
			Help:    "Retry-wrapped operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"connector", "operation"},
	)

	// ConnectorState tracks the lifecycle state per connector instance.
	// Labels: connector, state; the gauge for the current state is 1.
	ConnectorState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "junction_connector_state",
			Help: "Connector lifecycle state (1 for current state)",
		},
		[]string{"connector", "state"},
	)

	// RateLimitRejections counts rate limiter token denials.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "junction_rate_limit_rejections_total",
			Help: "Total requests denied by the fixed-window rate limiter",
		},
		[]string{"connector"},
	)

	// HealthChecks counts health check results per connector.
	// Labels: connector, result (healthy/unhealthy)
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "junction_health_checks_total",
			Help: "Total health checks performed",
		},
		[]string{"connector", "result"},
	)

	// WebhooksProcessed counts inbound webhook deliveries.
	// Labels: source, outcome (ok/invalid_json/bad_signature/no_handler/handler_error)
	WebhooksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "junction_webhooks_processed_total",
			Help: "Total inbound webhooks processed",
		},
		[]string{"source", "outcome"},
	)

	// WebhookDuration tracks end-to-end webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "junction_webhook_duration_seconds",
			Help:    "Webhook processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)

// SetConnectorState flips the state gauges so exactly one state carries 1
// for the given connector.
func SetConnectorState(connector, state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1.0
		}
		ConnectorState.WithLabelValues(connector, s).Set(v)
	}
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time since the timer started.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
