package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_events_registered_total",
		Help: "Total number of attendance events persisted, labelled by persisted type.",
	}, []string{"type"})

	SequenceCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sequence_corrections_total",
		Help: "Total number of events whose requested type was overridden to keep the timeline alternating.",
	})

	SequenceLockTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sequence_lock_timeouts_total",
		Help: "Total number of registrations that failed open after a timeline lock timeout.",
	})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_notifications_created_total",
		Help: "Total number of notifications created, labelled by channel and template.",
	}, []string{"channel", "template"})

	NotificationsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_notifications_deduplicated_total",
		Help: "Total number of notification triggers suppressed by the dedup gate.",
	})

	DeliveryEnqueueFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_delivery_enqueue_failures_total",
		Help: "Total number of delivery jobs that could not be enqueued; the notification stays queued for reconciliation.",
	})
)
