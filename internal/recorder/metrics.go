package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordedTotal counts decisions accepted for recording.
	// Labels: path (queued, sync_fallback)
	RecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "recorder",
			Name:      "decisions_recorded_total",
			Help:      "Total decisions handed to the recorder",
		},
		[]string{"path"},
	)

	// PublishErrorsTotal counts failed JetStream publishes.
	PublishErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "recorder",
			Name:      "publish_errors_total",
			Help:      "Total failed decision publishes",
		},
	)

	// PersistedTotal counts decisions written to the knowledge store.
	// Labels: result (success, error)
	PersistedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "recorder",
			Name:      "decisions_persisted_total",
			Help:      "Total decisions drained from the stream into the store",
		},
		[]string{"result"},
	)

	// QueueDepth tracks the in-process queue backlog.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "steward",
			Subsystem: "recorder",
			Name:      "queue_depth",
			Help:      "Decisions waiting in the in-process queue",
		},
	)
)
