package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "token2022_transactions_submitted_total",
			Help: "Transactions accepted by the rpc node",
		},
	)

	// stage is build, send or confirm
	transactionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token2022_transactions_failed_total",
			Help: "Transactions that failed before confirmation",
		},
		[]string{"stage"},
	)

	confirmationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "token2022_transaction_confirmation_seconds",
			Help:    "Time from build to confirmation",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		},
	)
)
