package venue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mselser95/cycle-arb/pkg/cache"
	"go.uber.org/zap"
)

// Registry maps venue names to implementations and caches health probes.
type Registry struct {
	mu     sync.RWMutex
	venues map[string]Venue

	health    cache.Cache
	healthTTL time.Duration
	logger    *zap.Logger
}

// RegistryConfig holds registry configuration.
type RegistryConfig struct {
	HealthCache cache.Cache // optional; probes are not cached when nil
	HealthTTL   time.Duration
	Logger      *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg *RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.HealthTTL <= 0 {
		cfg.HealthTTL = 10 * time.Second
	}
	return &Registry{
		venues:    make(map[string]Venue),
		health:    cfg.HealthCache,
		healthTTL: cfg.HealthTTL,
		logger:    cfg.Logger,
	}
}

// Register adds v, replacing any venue with the same name.
func (r *Registry) Register(v Venue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.venues[v.Name()] = v
	r.logger.Info("venue-registered", zap.String("venue", v.Name()))
}

// Get returns the venue registered under name.
func (r *Registry) Get(name string) (Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.venues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, name)
	}
	return v, nil
}

// Names returns registered venue names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.venues))
	for name := range r.venues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns registered venues ordered by name.
func (r *Registry) All() []Venue {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Venue, 0, len(names))
	for _, name := range names {
		out = append(out, r.venues[name])
	}
	return out
}

// Health returns the venue's health, served from cache within HealthTTL.
func (r *Registry) Health(ctx context.Context, name string) (Health, error) {
	if r.health == nil {
		return r.probe(ctx, name)
	}

	v, err := cache.GetOrLoad(r.health, "health:"+name, r.healthTTL, func() (interface{}, error) {
		return r.probe(ctx, name)
	})
	if err != nil {
		return Health{}, err
	}
	if h, ok := v.(Health); ok {
		return h, nil
	}
	return r.probe(ctx, name)
}

func (r *Registry) probe(ctx context.Context, name string) (Health, error) {
	v, err := r.Get(name)
	if err != nil {
		return Health{}, err
	}

	start := time.Now()
	h := v.HealthStatus(ctx)
	h.Venue = name
	if h.Latency == 0 {
		h.Latency = time.Since(start)
	}
	if h.CheckedAt.IsZero() {
		h.CheckedAt = time.Now()
	}

	healthy := "false"
	if h.Healthy {
		healthy = "true"
	}
	HealthChecksTotal.WithLabelValues(name, healthy).Inc()

	if !h.Healthy {
		r.logger.Warn("venue-unhealthy",
			zap.String("venue", name),
			zap.String("message", h.Message))
	}
	return h, nil
}

// Healthy reports whether every named venue is healthy.
func (r *Registry) Healthy(ctx context.Context, names ...string) bool {
	for _, name := range names {
		h, err := r.Health(ctx, name)
		if err != nil || !h.Healthy {
			return false
		}
	}
	return true
}

// HealthAll probes every venue.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	names := r.Names()
	out := make([]Health, 0, len(names))
	for _, name := range names {
		h, err := r.Health(ctx, name)
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out
}
