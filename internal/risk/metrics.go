package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssessmentsTotal tracks gate verdicts.
	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_risk_assessments_total",
			Help: "Total number of risk gate assessments",
		},
		[]string{"result"},
	)

	// RejectionsTotal tracks violated checks; one assessment can violate several.
	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_risk_rejections_total",
			Help: "Total number of risk check violations",
		},
		[]string{"check"},
	)

	// RiskScore tracks the cumulative risk score of assessed opportunities.
	RiskScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_risk_score",
		Help:    "Risk score of assessed opportunities",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	// EmergencyStopActive is 1 while the emergency stop is set.
	EmergencyStopActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_risk_emergency_stop_active",
		Help: "Emergency stop state (0=clear, 1=active)",
	})

	// EmergencyStopsTotal tracks emergency stop activations.
	EmergencyStopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_risk_emergency_stops_total",
		Help: "Total number of emergency stop activations",
	})

	// DailyTrades is the number of executions booked today.
	DailyTrades = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_risk_daily_trades",
		Help: "Executions booked since the last daily reset",
	})

	// DailyPnL is today's net P&L in numeraire units.
	DailyPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_risk_daily_pnl",
		Help: "Net profit and loss since the last daily reset",
	})

	// DailyResetsTotal tracks daily boundary resets.
	DailyResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_risk_daily_resets_total",
		Help: "Total number of daily counter resets",
	})
)
