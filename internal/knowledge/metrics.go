package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var upsertsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hbadvisor",
		Subsystem: "knowledge",
		Name:      "upserts_total",
		Help:      "Knowledge store writes by target (entry, rule) and result (ok, invalid, error).",
	},
	[]string{"target", "result"},
)
