package ircd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ambient instrumentation (SPEC_FULL.md §3 "Metrics"). No HTTP handler is
// wired here -- scraping them is an outer-surface concern the spec's
// Non-goals exclude -- but the registry itself is always on, the same way
// the teacher's logging is always on.
var (
	metricClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "driftwood",
		Name:      "clients_connected",
		Help:      "Number of currently connected client sockets.",
	})

	metricCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "driftwood",
		Name:      "commands_total",
		Help:      "Number of protocol commands dispatched, by command name.",
	}, []string{"command"})

	metricCommandsReplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "driftwood",
		Name:      "replies_total",
		Help:      "Number of outbound protocol lines enqueued.",
	})

	metricBytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "driftwood",
		Name:      "bytes_read_total",
		Help:      "Total bytes read from client sockets.",
	})

	metricBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "driftwood",
		Name:      "bytes_written_total",
		Help:      "Total bytes written to client sockets.",
	})

	metricChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "driftwood",
		Name:      "channels",
		Help:      "Number of currently registered channels.",
	})
)
