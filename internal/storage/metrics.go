package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SinkQueuedTotal tracks records accepted by the async sink, by kind.
	SinkQueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_storage_sink_queued_total",
			Help: "Total number of records queued for storage",
		},
		[]string{"kind"},
	)

	// SinkDroppedTotal tracks records dropped because the buffer was full or closed.
	SinkDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_storage_sink_dropped_total",
			Help: "Total number of records dropped by the async sink",
		},
		[]string{"kind"},
	)

	// WritesTotal tracks storage writes by kind and result.
	WritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_storage_writes_total",
			Help: "Total number of storage writes",
		},
		[]string{"kind", "result"},
	)

	// SinkQueueDepth tracks records waiting in the sink buffer.
	SinkQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_storage_sink_queue_depth",
		Help: "Number of records waiting in the async sink buffer",
	})
)
