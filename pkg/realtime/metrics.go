package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportchat",
			Subsystem: "realtime",
			Name:      "frames_received_total",
			Help:      "Frames received from the support gateway by type",
		},
		[]string{"type"},
	)

	framesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportchat",
			Subsystem: "realtime",
			Name:      "frames_sent_total",
			Help:      "Frames queued for the support gateway by type",
		},
		[]string{"type"},
	)

	reconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "supportchat",
			Subsystem: "realtime",
			Name:      "reconnect_attempts_total",
			Help:      "Dial attempts made while reconnecting",
		},
	)

	connectedGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "supportchat",
			Subsystem: "realtime",
			Name:      "connected",
			Help:      "1 while the WebSocket is connected",
		},
	)
)
