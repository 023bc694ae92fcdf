package outcome

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	measuredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steward",
		Subsystem: "outcome",
		Name:      "measured_total",
		Help:      "Outcome measurements by result.",
	}, []string{"result"})

	rulesDecayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "steward",
		Subsystem: "outcome",
		Name:      "rules_decayed_total",
		Help:      "Rules whose confidence was decayed for staleness.",
	})

	cleanupRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steward",
		Subsystem: "outcome",
		Name:      "cleanup_rows_total",
		Help:      "Rows removed by retention cleanup.",
	}, []string{"kind"})
)
