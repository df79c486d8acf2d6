package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentFlowsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_flows_started_total",
			Help: "Total number of payment flows started",
		},
	)

	PaymentFlowsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_flows_finished_total",
			Help: "Total number of payment flows finished, by outcome",
		},
		[]string{"outcome"},
	)

	PaymentFlowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_flow_duration_seconds",
			Help:    "Duration of payment flows in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 90, 120, 300},
		},
		[]string{"outcome"},
	)

	PaymentFlowsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_flows_active",
			Help: "Number of payment flows currently running",
		},
	)

	PaymentPollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_poll_ticks_total",
			Help: "Total number of payment status checks, by result",
		},
		[]string{"result"},
	)

	StoreWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_store_write_failures_total",
			Help: "Total number of failed subscription store writes",
		},
		[]string{"operation"},
	)
)
