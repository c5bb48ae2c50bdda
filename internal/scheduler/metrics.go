package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hbadvisor",
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Update cycles by result (ok, release_failed, index_failed).",
		},
		[]string{"result"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hbadvisor",
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of an update cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	rulesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hbadvisor",
			Subsystem: "scheduler",
			Name:      "rules_generated_total",
			Help:      "Draft rules produced by the changelog pipeline.",
		},
	)

	stateGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hbadvisor",
			Subsystem: "scheduler",
			Name:      "updating",
			Help:      "1 while an update cycle is running, 0 when idle.",
		},
	)
)
