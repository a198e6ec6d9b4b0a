package arbitrage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesDetectedTotal tracks distinct negative cycles found.
	CyclesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_cycles_detected_total",
		Help: "Total number of distinct negative cycles detected",
	})

	// CyclesDroppedTotal tracks cycles discarded after reconstruction.
	CyclesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_cycles_dropped_total",
			Help: "Total number of detected cycles dropped",
		},
		[]string{"reason"},
	)

	// DetectionSkippedTotal tracks detection passes that had nothing to work with.
	DetectionSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_detection_skipped_total",
			Help: "Total number of detection passes skipped",
		},
		[]string{"reason"},
	)

	// SamplesSkippedTotal tracks malformed samples skipped during graph build.
	SamplesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_graph_samples_skipped_total",
		Help: "Total number of malformed samples skipped while building the graph",
	})

	// GraphNodes is the asset count of the last graph.
	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_graph_nodes",
		Help: "Number of assets in the last price graph",
	})

	// GraphEdges is the edge count of the last graph.
	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_graph_edges",
		Help: "Number of directed edges in the last price graph",
	})

	// OpportunitiesDetectedTotal tracks opportunities that passed the scorer.
	OpportunitiesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_opportunities_detected_total",
			Help: "Total number of arbitrage opportunities detected",
		},
		[]string{"kind"},
	)

	// OpportunityProfitBPS tracks profit margins in basis points.
	OpportunityProfitBPS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_opportunity_profit_bps",
		Help:    "Arbitrage opportunity profit margin in basis points",
		Buckets: []float64{10, 25, 50, 100, 200, 500, 1000, 2000, 5000},
	})

	// OpportunitySize tracks trade sizes in numeraire units.
	OpportunitySize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_opportunity_size",
		Help:    "Arbitrage opportunity trade size in numeraire units",
		Buckets: prometheus.ExponentialBuckets(10, 2, 12),
	})

	// DetectionDurationSeconds tracks detection pass latency.
	DetectionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_detection_duration_seconds",
		Help:    "Duration of a cycle detection pass",
		Buckets: prometheus.DefBuckets,
	})

	// OpportunitiesRejectedTotal tracks rejected opportunities by reason.
	OpportunitiesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_opportunities_rejected_total",
			Help: "Total number of arbitrage opportunities rejected by the scorer",
		},
		[]string{"reason"},
	)
)
