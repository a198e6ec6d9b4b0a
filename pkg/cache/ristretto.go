package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache implements Cache on top of ristretto. Every entry costs 1,
// so MaxCost is the entry budget.
type RistrettoCache struct {
	name   string
	store  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds ristretto sizing.
type RistrettoConfig struct {
	Name        string // metric label
	NumCounters int64  // ~10x the expected entry count
	MaxCost     int64
	BufferItems int64
	Logger      *zap.Logger
}

// NewRistrettoCache creates a ristretto-backed cache. Zero sizes get small
// defaults suited to a handful of venues.
func NewRistrettoCache(cfg *RistrettoConfig) (*RistrettoCache, error) {
	name := cfg.Name
	if name == "" {
		name = "default"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: positiveOr(cfg.NumCounters, 1000),
		MaxCost:     positiveOr(cfg.MaxCost, 100),
		BufferItems: positiveOr(cfg.BufferItems, 64),
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache %s: %w", name, err)
	}

	return &RistrettoCache{name: name, store: store, logger: logger}, nil
}

func positiveOr(v, def int64) int64 {
	if v > 0 {
		return v
	}
	return def
}

func (r *RistrettoCache) count(op string) {
	OperationsTotal.WithLabelValues(r.name, op).Inc()
}

// Get returns the value for key.
func (r *RistrettoCache) Get(key string) (interface{}, bool) {
	v, ok := r.store.Get(key)
	if ok {
		r.count("hit")
	} else {
		r.count("miss")
	}
	return v, ok
}

// Set stores value for ttl; a non-positive ttl never expires.
func (r *RistrettoCache) Set(key string, value interface{}, ttl time.Duration) bool {
	var ok bool
	if ttl > 0 {
		ok = r.store.SetWithTTL(key, value, 1, ttl)
	} else {
		ok = r.store.Set(key, value, 1)
	}

	if !ok {
		r.count("rejected")
		r.logger.Debug("cache-set-rejected", zap.String("cache", r.name), zap.String("key", key))
		return false
	}
	r.count("set")
	return true
}

func (r *RistrettoCache) Delete(key string) {
	r.store.Del(key)
	r.count("delete")
}

func (r *RistrettoCache) Clear() {
	r.store.Clear()
}

func (r *RistrettoCache) Wait() {
	r.store.Wait()
}

func (r *RistrettoCache) Close() {
	r.store.Close()
}
