package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_attempts_total",
			Help: "Total number of checkout attempts started",
		},
		[]string{"payment_service"},
	)

	CheckoutFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_failures_total",
			Help: "Total number of checkout attempts that resolved unsuccessfully",
		},
		[]string{"payment_service", "error_code"},
	)

	CheckoutRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_retries_total",
			Help: "Total number of retried checkout attempts",
		},
	)

	CheckoutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "checkout_duration_seconds",
			Help: "Duration of one checkout attempt end to end",
		},
		[]string{"payment_service"},
	)

	CheckoutInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkout_in_flight",
			Help: "Whether a checkout attempt is currently outstanding",
		},
	)

	LifecycleOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_lifecycle_operations_total",
			Help: "Subscription lifecycle operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
)
