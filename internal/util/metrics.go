package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transactions_started_total",
		Help: "Total number of saga runs started",
	})

	TransactionsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transactions_confirmed_total",
		Help: "Total number of transactions confirmed on both stores",
	})

	TransactionsCompensatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transactions_compensated_total",
		Help: "Total number of saga runs that entered compensation",
	})

	TransactionsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transactions_failed_total",
		Help: "Total number of saga runs ending in a failed result",
	}, []string{"reason"})

	FraudRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraud_rejections_total",
		Help: "Total number of transactions rejected by the risk scorer",
	})

	ValidationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_failures_total",
		Help: "Total number of requests rejected before any side effect",
	}, []string{"reason"})

	CompensationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "compensation_failures_total",
		Help: "Total number of compensations that could not complete",
	})

	ReconciliationQueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_queued_total",
		Help: "Total number of transactions queued for manual reconciliation",
	})

	SagaStepLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "saga_step_latency_seconds",
		Help:    "Latency of individual saga steps",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
