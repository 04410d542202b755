package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionState - текущее состояние подключения (одна метка со значением 1).
	ConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "irc_relay_connection_state",
			Help: "Current connection state (1 for the active state)",
		},
		[]string{"server", "state"},
	)

	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irc_relay_inbound_messages_total",
			Help: "Inbound messages by how they were handled",
		},
		[]string{"server", "result"},
	)

	Commands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irc_relay_commands_total",
			Help: "Command invocations per command",
		},
		[]string{"command"},
	)

	InjectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irc_relay_inject_failures_total",
			Help: "Failed host inference calls",
		},
		[]string{"server"},
	)

	ChunksSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irc_relay_chunks_sent_total",
			Help: "Outbound message chunks written to the wire",
		},
		[]string{"server"},
	)

	// FloodQueueDepth - сколько сообщений ждут отправки в очереди антифлуда.
	FloodQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "irc_relay_flood_queue_depth",
			Help: "Outbound chunks waiting in the flood pacer",
		},
		[]string{"server"},
	)

	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irc_relay_host_events_total",
			Help: "Events emitted on the host event bus",
		},
		[]string{"event"},
	)

	// InferenceDuration - время ответа модели.
	InferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "irc_relay_inference_seconds",
			Help:    "Time spent producing an inference reply",
			Buckets: prometheus.ExponentialBuckets(0.05, 1.8, 14),
		},
	)
)
