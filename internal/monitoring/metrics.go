package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncCyclesTotal counts completed sync cycles by kind and final status
	SyncCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailmirror_sync_cycles_total",
		Help: "Completed sync cycles by kind and status",
	}, []string{"kind", "status"})

	// ThreadsSyncedTotal counts threads successfully reconciled
	ThreadsSyncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailmirror_threads_synced_total",
		Help: "Threads successfully reconciled into the store",
	})

	// MessagesSyncedTotal counts messages successfully reconciled
	MessagesSyncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailmirror_messages_synced_total",
		Help: "Messages successfully reconciled into the store",
	})

	// AttachmentsSyncedTotal counts attachments stored
	AttachmentsSyncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailmirror_attachments_synced_total",
		Help: "Attachments stored in the blob store",
	})

	// ThreadsPrunedTotal counts threads deleted by the prune step
	ThreadsPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailmirror_threads_pruned_total",
		Help: "Threads pruned after disappearing from the remote listing",
	})

	// SyncDurationSeconds observes full cycle wall time
	SyncDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mailmirror_sync_duration_seconds",
		Help:    "Wall time of full sync cycles",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
