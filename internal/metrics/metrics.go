package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffee_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coffee_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ApprovalTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffee_approval_transitions_total",
			Help: "Recorded approval decisions by stage and resulting status.",
		},
		[]string{"stage", "outcome"},
	)

	PaymentsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffee_payments_applied_total",
			Help: "Payments applied to balance accounts, split by replays.",
		},
		[]string{"result"},
	)

	KilogramsAllocated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffee_kilograms_allocated_total",
			Help: "Kilograms drawn from batches by commodity.",
		},
		[]string{"commodity"},
	)

	ConcurrencyConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffee_concurrency_conflicts_total",
			Help: "Optimistic concurrency conflicts by operation.",
		},
		[]string{"operation"},
	)

	AuxiliaryWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffee_auxiliary_write_failures_total",
			Help: "Non-fatal write failures to secondary sinks.",
		},
		[]string{"sink"},
	)

	OutboxDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffee_outbox_deliveries_total",
			Help: "Outbox effect deliveries by result.",
		},
		[]string{"result"},
	)
)
