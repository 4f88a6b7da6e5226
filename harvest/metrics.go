package harvest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token2022_harvest_batches_total",
			Help: "Harvest batches by operation and result",
		},
		[]string{"operation", "result"},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token2022_harvest_runs_total",
			Help: "Harvest runs by operation and final state",
		},
		[]string{"operation", "state"},
	)

	skippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "token2022_harvest_skipped_sources_total",
			Help: "Sources dropped because they withhold nothing",
		},
	)
)
