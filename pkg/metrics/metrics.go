package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReportSagaOutcomes counts report creations by result (committed|rolled_back|rejected).
	ReportSagaOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspectd_report_saga_total",
			Help: "Report upload saga outcomes",
		},
		[]string{"result"},
	)

	// MediaCompensations counts blobs deleted while rolling back a failed saga.
	MediaCompensations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inspectd_media_compensated_objects_total",
			Help: "Uploaded objects removed by saga compensation",
		},
	)

	// NotificationDispatches counts dispatches by event type and terminal status (sent|failed).
	NotificationDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspectd_notification_dispatch_total",
			Help: "Notification dispatch outcomes",
		},
		[]string{"type", "status"},
	)

	// PushTokensPruned counts device tokens deleted after the gateway reported them unregistered.
	PushTokensPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inspectd_push_tokens_pruned_total",
			Help: "Device tokens pruned after unregistered responses",
		},
	)

	// SessionsSwept counts push token records whose stale sessions were logged out.
	SessionsSwept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspectd_session_sweep_records_total",
			Help: "Push token records processed by the session sweeper",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inspectd_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
