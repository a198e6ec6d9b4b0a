package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconnectConfig holds the exponential backoff settings for the tick stream.
type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterPercent     float64 // 0.2 = up to 20% extra
}

// Reconnector retries a connect function with capped, jittered backoff.
type Reconnector struct {
	config  ReconnectConfig
	logger  *zap.Logger
	mu      sync.Mutex
	current time.Duration
}

// NewReconnector creates a reconnector starting at cfg.InitialDelay.
func NewReconnector(cfg ReconnectConfig, logger *zap.Logger) *Reconnector {
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	return &Reconnector{
		config:  cfg,
		logger:  logger,
		current: cfg.InitialDelay,
	}
}

// Reconnect blocks until connect succeeds or ctx is done.
func (r *Reconnector) Reconnect(ctx context.Context, connect func(context.Context) error) error {
	for {
		wait := r.next()

		r.logger.Info("attempting-reconnection", zap.Duration("backoff", wait))
		WSReconnectAttemptsTotal.Inc()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err := connect(ctx)
		if err == nil {
			r.Reset()
			r.logger.Info("reconnection-successful")
			return nil
		}

		r.logger.Warn("reconnection-failed", zap.Error(err))
		WSReconnectFailuresTotal.Inc()
		r.grow()
	}
}

// Reset drops the backoff back to the initial delay.
func (r *Reconnector) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = r.config.InitialDelay
}

// Current returns the un-jittered delay the next attempt will use.
func (r *Reconnector) Current() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Reconnector) next() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	jitter := rand.Float64() * r.config.JitterPercent
	return time.Duration(float64(r.current) * (1.0 + jitter))
}

func (r *Reconnector) grow() {
	r.mu.Lock()
	defer r.mu.Unlock()

	grown := time.Duration(float64(r.current) * r.config.BackoffMultiplier)
	if grown > r.config.MaxDelay {
		grown = r.config.MaxDelay
	}
	r.current = grown
}
