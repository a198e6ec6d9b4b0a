package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollsTotal tracks venue price polls by venue and result.
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_feed_polls_total",
			Help: "Total number of venue price polls",
		},
		[]string{"venue", "result"},
	)

	// PollDurationSeconds tracks how long one poll round across all venues takes.
	PollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_feed_poll_duration_seconds",
		Help:    "Duration of a full venue poll round",
		Buckets: prometheus.DefBuckets,
	})

	// WSConnected is 1 while the tick stream is connected.
	WSConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_feed_ws_connected",
		Help: "Whether the websocket tick stream is connected (1) or not (0)",
	})

	// WSReconnectAttemptsTotal tracks reconnection attempts.
	WSReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_feed_ws_reconnect_attempts_total",
		Help: "Total number of websocket reconnection attempts",
	})

	// WSReconnectFailuresTotal tracks failed reconnection attempts.
	WSReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_feed_ws_reconnect_failures_total",
		Help: "Total number of failed websocket reconnection attempts",
	})

	// TicksReceivedTotal tracks ticks decoded from the stream, by venue.
	TicksReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_feed_ticks_received_total",
			Help: "Total number of price ticks received over websocket",
		},
		[]string{"venue"},
	)

	// TicksDroppedTotal tracks ticks that could not be delivered.
	TicksDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_feed_ticks_dropped_total",
			Help: "Total number of price ticks dropped",
		},
		[]string{"reason"},
	)

	// WSConnectionDuration tracks how long connections stay up.
	WSConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_feed_ws_connection_duration_seconds",
		Help:    "Duration of websocket connections before disconnect",
		Buckets: []float64{1, 10, 60, 300, 1800, 3600, 21600},
	})
)
