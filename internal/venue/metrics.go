package venue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HealthChecksTotal tracks uncached venue health probes.
	HealthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_venue_health_checks_total",
			Help: "Total number of venue health probes",
		},
		[]string{"venue", "healthy"},
	)

	// SimulatedSwapsTotal tracks swaps handled by the execution simulator.
	SimulatedSwapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_venue_simulated_swaps_total",
			Help: "Total number of swaps handled by the execution simulator",
		},
		[]string{"venue", "result"},
	)
)
