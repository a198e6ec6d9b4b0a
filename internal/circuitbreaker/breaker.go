package circuitbreaker

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// LoopBreaker tracks consecutive loop-level failures of the engine. Each
// failure lengthens the backoff before the next cycle; after MaxConsecutive
// failures the breaker trips and stays open until an operator resets it.
type LoopBreaker struct {
	enabled atomic.Bool // Atomic for lock-free reads

	// Configuration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
	maxConsecutive int
	logger         *zap.Logger

	// Protected by mutex
	mu          sync.RWMutex
	consecutive int
	totalErrors int
	lastError   string
	lastFailure time.Time
	trippedAt   time.Time
}

// Config holds circuit breaker configuration.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	MaxConsecutive int
	Logger         *zap.Logger
}

// Status holds current circuit breaker status for debugging.
type Status struct {
	Enabled           bool      `json:"enabled"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	TotalErrors       int       `json:"total_errors"`
	LastError         string    `json:"last_error,omitempty"`
	LastFailure       time.Time `json:"last_failure,omitempty"`
	TrippedAt         time.Time `json:"tripped_at,omitempty"`
	NextBackoff       string    `json:"next_backoff"`
}

// New creates a new loop breaker with the given configuration.
func New(cfg *Config) (breaker *LoopBreaker, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.InitialBackoff <= 0 {
		return nil, fmt.Errorf("initial backoff must be positive")
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		return nil, fmt.Errorf("max backoff must be >= initial backoff")
	}
	if cfg.Multiplier < 1.0 {
		return nil, fmt.Errorf("multiplier must be >= 1.0")
	}
	if cfg.MaxConsecutive <= 0 {
		return nil, fmt.Errorf("max consecutive errors must be positive")
	}

	breaker = &LoopBreaker{
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		multiplier:     cfg.Multiplier,
		maxConsecutive: cfg.MaxConsecutive,
		logger:         cfg.Logger,
	}

	// Start enabled by default
	breaker.enabled.Store(true)

	CircuitBreakerEnabled.Set(1)
	CircuitBreakerConsecutiveErrors.Set(0)

	return breaker, nil
}

// IsEnabled returns true if the loop may run another cycle.
// This is lock-free and safe to call from hot paths.
func (b *LoopBreaker) IsEnabled() (enabled bool) {
	return b.enabled.Load()
}

// RecordSuccess clears the consecutive failure count.
func (b *LoopBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.consecutive > 0 {
		b.logger.Info("loop-recovered",
			zap.Int("after-errors", b.consecutive))
	}
	b.consecutive = 0
	CircuitBreakerConsecutiveErrors.Set(0)
}

// RecordFailure books a loop-level error and returns how long the loop should
// wait before its next cycle. The returned bool is false once the breaker has
// tripped.
func (b *LoopBreaker) RecordFailure(err error) (backoff time.Duration, enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive++
	b.totalErrors++
	b.lastFailure = time.Now()
	if err != nil {
		b.lastError = err.Error()
	}

	CircuitBreakerErrors.Inc()
	CircuitBreakerConsecutiveErrors.Set(float64(b.consecutive))

	backoff = b.backoffFor(b.consecutive)

	if b.consecutive >= b.maxConsecutive && b.enabled.Load() {
		b.enabled.Store(false)
		b.trippedAt = b.lastFailure
		CircuitBreakerEnabled.Set(0)
		CircuitBreakerStateChanges.Inc()

		b.logger.Error("circuit-breaker-tripped",
			zap.Int("consecutive-errors", b.consecutive),
			zap.Int("max-consecutive", b.maxConsecutive),
			zap.Error(err))
		return backoff, false
	}

	b.logger.Warn("loop-error",
		zap.Int("consecutive-errors", b.consecutive),
		zap.Duration("backoff", backoff),
		zap.Error(err))

	return backoff, b.enabled.Load()
}

// backoffFor is initial * multiplier^(n-1), capped at maxBackoff.
func (b *LoopBreaker) backoffFor(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	d := float64(b.initialBackoff) * math.Pow(b.multiplier, float64(n-1))
	if d > float64(b.maxBackoff) || math.IsInf(d, 1) {
		return b.maxBackoff
	}
	return time.Duration(d)
}

// Reset re-enables a tripped breaker and clears the failure count.
func (b *LoopBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasEnabled := b.enabled.Load()
	b.consecutive = 0
	b.trippedAt = time.Time{}
	b.enabled.Store(true)

	CircuitBreakerEnabled.Set(1)
	CircuitBreakerConsecutiveErrors.Set(0)
	if !wasEnabled {
		CircuitBreakerStateChanges.Inc()
	}

	b.logger.Info("circuit-breaker-reset",
		zap.Bool("was-tripped", !wasEnabled),
		zap.Int("total-errors", b.totalErrors))
}

// GetStatus returns current circuit breaker status for debugging and HTTP endpoints.
func (b *LoopBreaker) GetStatus() (status Status) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	next := b.backoffFor(b.consecutive + 1)

	status = Status{
		Enabled:           b.enabled.Load(),
		ConsecutiveErrors: b.consecutive,
		TotalErrors:       b.totalErrors,
		LastError:         b.lastError,
		LastFailure:       b.lastFailure,
		TrippedAt:         b.trippedAt,
		NextBackoff:       next.String(),
	}

	return status
}
