package supportchat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportchat",
			Name:      "messages_sent_total",
			Help:      "Messages sent by result (delivered, failed, queued)",
		},
		[]string{"result"},
	)

	offlineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "supportchat",
			Name:      "offline_queue_depth",
			Help:      "Messages waiting in the offline queue",
		},
	)

	offlineDrainResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportchat",
			Name:      "offline_drain_results_total",
			Help:      "Offline resend attempts by result (sent, failed, abandoned)",
		},
		[]string{"result"},
	)

	realtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportchat",
			Name:      "realtime_events_total",
			Help:      "Support chat events applied by type",
		},
		[]string{"type"},
	)

	operationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportchat",
			Name:      "operation_failures_total",
			Help:      "Failed controller operations by operation",
		},
		[]string{"operation"},
	)

	sequencerDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "supportchat",
			Name:      "sequencer_duplicates_total",
			Help:      "Sequenced events dropped as duplicates",
		},
	)

	sequencerGaps = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "supportchat",
			Name:      "sequencer_gaps_skipped_total",
			Help:      "Sequence gaps abandoned after overflow or timeout",
		},
	)
)
