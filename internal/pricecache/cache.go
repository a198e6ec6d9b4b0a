package pricecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mselser95/cycle-arb/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ErrClosed is returned by reads after Close.
var ErrClosed = errors.New("price cache closed")

// Cache holds the freshest sample per (asset, quote, venue) key.
type Cache struct {
	samples   map[string]types.PriceSample // key: PriceSample.Key()
	mu        sync.RWMutex
	logger    *zap.Logger
	numeraire string
	maxAge    time.Duration
	sampleIn  <-chan types.PriceSample
	closed    bool
	ctx       context.Context
	wg        sync.WaitGroup
}

// Config holds price cache configuration.
type Config struct {
	Logger    *zap.Logger
	Numeraire string
	MaxAge    time.Duration
	// SampleChannel is optional; feed connectors may push samples here
	// instead of calling Update directly.
	SampleChannel <-chan types.PriceSample
}

// New creates a new price cache.
func New(cfg *Config) *Cache {
	return &Cache{
		samples:   make(map[string]types.PriceSample),
		logger:    cfg.Logger,
		numeraire: cfg.Numeraire,
		maxAge:    cfg.MaxAge,
		sampleIn:  cfg.SampleChannel,
	}
}

// Start consumes the sample channel until ctx is done.
func (c *Cache) Start(ctx context.Context) error {
	c.ctx = ctx
	c.logger.Info("price-cache-starting",
		zap.Duration("max-age", c.maxAge),
		zap.String("numeraire", c.numeraire))

	if c.sampleIn == nil {
		return nil
	}

	c.wg.Add(1)
	go c.consume()

	return nil
}

func (c *Cache) consume() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("price-cache-stopping")
			return
		case sample, ok := <-c.sampleIn:
			if !ok {
				c.logger.Info("sample-channel-closed")
				return
			}

			err := c.Update(sample)
			if err != nil {
				c.logger.Debug("sample-rejected",
					zap.String("key", sample.Key()),
					zap.Error(err))
			}
		}
	}
}

// Update stores a sample, superseding an older one for the same key.
// Non-positive prices and out-of-order timestamps are rejected.
func (c *Cache) Update(sample types.PriceSample) error {
	timer := prometheus.NewTimer(UpdateDuration)
	defer timer.ObserveDuration()

	sample = sample.WithQuote(c.numeraire)
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = time.Now()
	}

	err := sample.Validate()
	if err != nil {
		SamplesRejectedTotal.WithLabelValues("malformed").Inc()
		return err
	}

	key := sample.Key()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	existing, exists := c.samples[key]
	if exists && sample.CapturedAt.Before(existing.CapturedAt) {
		c.mu.Unlock()
		SamplesRejectedTotal.WithLabelValues("out_of_order").Inc()
		return fmt.Errorf("sample %s at %s older than stored %s",
			key, sample.CapturedAt.Format(time.RFC3339Nano), existing.CapturedAt.Format(time.RFC3339Nano))
	}

	c.samples[key] = sample
	SamplesTracked.Set(float64(len(c.samples)))
	c.mu.Unlock()

	UpdatesTotal.WithLabelValues(sample.Venue).Inc()

	c.logger.Debug("price-sample-updated",
		zap.String("key", key),
		zap.Float64("price", sample.Price),
		zap.Float64("liquidity", sample.Liquidity))

	return nil
}

// Snapshot copies every fresh sample under a single read lock so a detection
// pass never sees a mix of old and new values for the same key.
func (c *Cache) Snapshot(now time.Time) (types.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return types.Snapshot{}, ErrClosed
	}

	snap := types.Snapshot{
		TakenAt: now,
		Samples: make(map[string]types.PriceSample, len(c.samples)),
	}

	for key, sample := range c.samples {
		if c.isStale(sample, now) {
			snap.Stale++
			continue
		}
		snap.Samples[key] = sample
	}

	if snap.Stale > 0 {
		StaleSamplesTotal.Add(float64(snap.Stale))
	}

	return snap, nil
}

// GetLatestSamples returns the fresh samples for asset, one per venue and quote.
func (c *Cache) GetLatestSamples(asset string, now time.Time) []types.PriceSample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.PriceSample, 0, 4)
	for _, sample := range c.samples {
		if sample.Asset != asset || c.isStale(sample, now) {
			continue
		}
		out = append(out, sample)
	}

	return out
}

// Assets returns the distinct assets currently held.
func (c *Cache) Assets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, sample := range c.samples {
		if _, ok := seen[sample.Asset]; ok {
			continue
		}
		seen[sample.Asset] = struct{}{}
		out = append(out, sample.Asset)
	}

	return out
}

// Len returns the number of stored samples, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

func (c *Cache) isStale(sample types.PriceSample, now time.Time) bool {
	return c.maxAge > 0 && sample.Age(now) > c.maxAge
}

// Close stops the consumer and makes further reads fail.
func (c *Cache) Close() error {
	c.logger.Info("closing-price-cache")
	c.wg.Wait()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.logger.Info("price-cache-closed")
	return nil
}
