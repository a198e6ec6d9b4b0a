package execution

import (
	"context"
	"time"
)

// BackoffConfig configures capped exponential delays.
type BackoffConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// Backoff yields InitialDelay, InitialDelay*m, ... capped at MaxDelay.
// Not safe for concurrent use; each leg owns its own.
type Backoff struct {
	config  BackoffConfig
	current time.Duration
}

// NewBackoff creates a backoff sequence starting at cfg.InitialDelay.
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	return &Backoff{config: cfg, current: cfg.InitialDelay}
}

// Next returns the current delay and advances the sequence.
func (b *Backoff) Next() time.Duration {
	d := b.current

	next := time.Duration(float64(b.current) * b.config.BackoffMultiplier)
	if next > b.config.MaxDelay {
		next = b.config.MaxDelay
	}
	b.current = next

	return d
}

// Reset restarts the sequence.
func (b *Backoff) Reset() {
	b.current = b.config.InitialDelay
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
