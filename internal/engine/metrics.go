package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal tracks detection cycles by result.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_engine_cycles_total",
			Help: "Total number of engine cycles",
		},
		[]string{"result"},
	)

	// CycleDurationSeconds tracks the duration of a full cycle including execution.
	CycleDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_engine_cycle_duration_seconds",
		Help:    "Duration of one snapshot-detect-assess-execute cycle",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
	})

	// Halted is 1 while the engine is paused by an operator.
	Halted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_engine_halted",
		Help: "Whether the engine is paused (1) or running (0)",
	})

	// LoopBackoffSeconds tracks the backoff applied after loop-level errors.
	LoopBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_engine_loop_backoff_seconds",
		Help:    "Backoff applied after a loop-level error",
		Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60},
	})

	// ExecutionsSkippedTotal tracks approved opportunities that were not executed.
	ExecutionsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_engine_executions_skipped_total",
			Help: "Total number of approved opportunities not executed",
		},
		[]string{"reason"},
	)
)
