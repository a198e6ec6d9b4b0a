package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal tracks executions by terminal outcome.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_executions_total",
			Help: "Total number of opportunity executions by outcome",
		},
		[]string{"mode", "outcome"},
	)

	// LegsTotal tracks finished legs by venue and status.
	LegsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_execution_legs_total",
			Help: "Total number of execution legs by final status",
		},
		[]string{"venue", "status"},
	)

	// SubmitFailuresTotal tracks failed swap submissions, including retried ones.
	SubmitFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_execution_submit_failures_total",
			Help: "Total number of failed swap submissions",
		},
		[]string{"venue"},
	)

	// ConfirmPollsTotal tracks confirmation polls.
	ConfirmPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_execution_confirm_polls_total",
			Help: "Total number of swap confirmation polls",
		},
		[]string{"venue"},
	)

	// UnbalancedPositionsTotal tracks executions left with a residual position.
	UnbalancedPositionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_execution_unbalanced_positions_total",
		Help: "Total number of executions that ended unbalanced",
	})

	// InsufficientProfitTotal tracks settled executions that lost money.
	InsufficientProfitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_execution_insufficient_profit_total",
		Help: "Total number of settled executions with negative net profit",
	})

	// FeesPaidTotal tracks cumulative fees.
	FeesPaidTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_execution_fees_paid_total",
			Help: "Cumulative fees paid in numeraire units",
		},
		[]string{"mode"},
	)

	// CumulativeProfit tracks cumulative net profit (hypothetical for paper trading).
	CumulativeProfit = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyclearb_execution_cumulative_profit",
			Help: "Cumulative net profit in numeraire units",
		},
		[]string{"mode"},
	)

	// ExecutionDurationSeconds tracks execution latency.
	ExecutionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_execution_duration_seconds",
		Help:    "Duration of opportunity execution",
		Buckets: prometheus.DefBuckets,
	})
)
