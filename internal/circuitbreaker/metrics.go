package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CircuitBreakerEnabled indicates whether the engine loop may run.
	CircuitBreakerEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_circuit_breaker_enabled",
		Help: "Whether the loop circuit breaker allows new cycles (1=enabled, 0=tripped)",
	})

	// CircuitBreakerConsecutiveErrors tracks the current run of loop failures.
	CircuitBreakerConsecutiveErrors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_circuit_breaker_consecutive_errors",
		Help: "Current number of consecutive loop-level errors",
	})

	// CircuitBreakerErrors tracks all loop-level errors.
	CircuitBreakerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_circuit_breaker_errors_total",
		Help: "Total number of loop-level errors recorded",
	})

	// CircuitBreakerStateChanges tracks the number of times the circuit breaker changed state.
	CircuitBreakerStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_circuit_breaker_state_changes_total",
		Help: "Total number of times circuit breaker changed state (enabled/tripped)",
	})
)
