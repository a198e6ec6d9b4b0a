package pricecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal tracks accepted sample updates by venue.
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_price_cache_updates_total",
			Help: "Total number of accepted price sample updates",
		},
		[]string{"venue"},
	)

	// SamplesRejectedTotal tracks rejected samples by reason.
	SamplesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_price_cache_samples_rejected_total",
			Help: "Total number of rejected price samples",
		},
		[]string{"reason"},
	)

	// StaleSamplesTotal counts samples excluded from snapshots for age.
	StaleSamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_price_cache_stale_samples_total",
		Help: "Total number of samples excluded from snapshots as stale",
	})

	// SamplesTracked tracks the number of samples in memory.
	SamplesTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_price_cache_samples_tracked",
		Help: "Number of price samples tracked in memory",
	})

	// UpdateDuration tracks time spent applying one update.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_price_cache_update_duration_seconds",
		Help:    "Duration of a single price cache update",
		Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
	})
)
