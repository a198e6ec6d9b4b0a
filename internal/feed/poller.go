package feed

import (
	"context"
	"errors"
	"time"

	"github.com/mselser95/cycle-arb/internal/venue"
	"github.com/mselser95/cycle-arb/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Updater accepts price samples. *pricecache.Cache satisfies it.
type Updater interface {
	Update(sample types.PriceSample) error
}

// PollerConfig holds venue poller configuration.
type PollerConfig struct {
	Registry    *venue.Registry
	Updater     Updater
	Assets      []string
	Interval    time.Duration
	Timeout     time.Duration // per venue call; defaults to Interval
	Concurrency int
	Logger      *zap.Logger
}

// Poller pulls quotes from every registered venue on a fixed interval.
type Poller struct {
	registry    *venue.Registry
	updater     Updater
	assets      []string
	interval    time.Duration
	timeout     time.Duration
	concurrency int
	logger      *zap.Logger
}

// NewPoller creates a poller.
func NewPoller(cfg *PollerConfig) (*Poller, error) {
	if cfg.Registry == nil {
		return nil, errors.New("venue registry is required")
	}
	if cfg.Updater == nil {
		return nil, errors.New("updater is required")
	}

	p := &Poller{
		registry:    cfg.Registry,
		updater:     cfg.Updater,
		assets:      cfg.Assets,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
	if p.interval <= 0 {
		p.interval = time.Second
	}
	if p.timeout <= 0 {
		p.timeout = p.interval
	}
	if p.concurrency <= 0 {
		p.concurrency = 8
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p, nil
}

// Run polls once immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("venue-poller-starting",
		zap.Duration("interval", p.interval),
		zap.Strings("venues", p.registry.Names()))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.PollOnce(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("venue-poller-stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce queries all venues concurrently and returns how many samples were
// accepted. A failing venue is logged and skipped.
func (p *Poller) PollOnce(ctx context.Context) int {
	timer := prometheus.NewTimer(PollDurationSeconds)
	defer timer.ObserveDuration()

	venues := p.registry.All()
	accepted := make([]int, len(venues))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, v := range venues {
		i, v := i, v
		g.Go(func() error {
			accepted[i] = p.pollVenue(gctx, v)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, n := range accepted {
		total += n
	}
	return total
}

func (p *Poller) pollVenue(ctx context.Context, v venue.Venue) int {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	samples, err := v.GetPrices(ctx, p.assets)
	if err != nil {
		PollsTotal.WithLabelValues(v.Name(), "error").Inc()
		p.logger.Warn("venue-poll-failed",
			zap.String("venue", v.Name()),
			zap.Error(err))
		return 0
	}
	PollsTotal.WithLabelValues(v.Name(), "ok").Inc()

	n := 0
	for _, s := range samples {
		if s.Venue == "" {
			s.Venue = v.Name()
		}
		err = p.updater.Update(s)
		if err != nil {
			p.logger.Debug("sample-rejected",
				zap.String("venue", v.Name()),
				zap.String("key", s.Key()),
				zap.Error(err))
			continue
		}
		n++
	}
	return n
}
