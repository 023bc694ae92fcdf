package heartbeat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steward",
		Subsystem: "heartbeat",
		Name:      "sweeps_total",
		Help:      "Heartbeat sweeps by result.",
	}, []string{"result"})

	findingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steward",
		Subsystem: "heartbeat",
		Name:      "findings_total",
		Help:      "Findings raised by detector category.",
	}, []string{"category"})

	tasksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "steward",
		Subsystem: "heartbeat",
		Name:      "tasks_created_total",
		Help:      "Tasks created from findings, after idempotency dedup.",
	})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "steward",
		Subsystem: "heartbeat",
		Name:      "sweep_duration_seconds",
		Help:      "Wall time of one sweep.",
		Buckets:   prometheus.DefBuckets,
	})
)
