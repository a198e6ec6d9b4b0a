package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/mselser95/cycle-arb/internal/arbitrage"
	"github.com/mselser95/cycle-arb/internal/circuitbreaker"
	"github.com/mselser95/cycle-arb/internal/engine"
	"github.com/mselser95/cycle-arb/internal/execution"
	"github.com/mselser95/cycle-arb/internal/feed"
	"github.com/mselser95/cycle-arb/internal/pricecache"
	"github.com/mselser95/cycle-arb/internal/risk"
	"github.com/mselser95/cycle-arb/internal/storage"
	"github.com/mselser95/cycle-arb/internal/venue"
	"github.com/mselser95/cycle-arb/pkg/cache"
	"github.com/mselser95/cycle-arb/pkg/config"
	"github.com/mselser95/cycle-arb/pkg/healthprobe"
	"github.com/mselser95/cycle-arb/pkg/httpserver"
	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

const tickBufferSize = 1024

// New creates a new application instance. Nothing is started until Run.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.ExecutionMode != "" {
		cfg.ExecutionMode = opts.ExecutionMode
		err := cfg.Validate()
		if err != nil {
			return nil, fmt.Errorf("validate config: %w", err)
		}
	}

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthprobe.New(),
		simulators:    make(map[string]*venue.ExecutionSimulator),
	}

	var err error
	a.healthCache, err = setupHealthCache(logger)
	if err != nil {
		return nil, fmt.Errorf("setup health cache: %w", err)
	}

	a.ticks = make(chan types.PriceSample, tickBufferSize)
	a.prices = pricecache.New(&pricecache.Config{
		Logger:        logger,
		Numeraire:     cfg.Numeraire,
		MaxAge:        cfg.MaxSampleAge,
		SampleChannel: a.ticks,
	})

	a.registry = venue.NewRegistry(&venue.RegistryConfig{
		HealthCache: a.healthCache,
		HealthTTL:   cfg.VenueHealthTTL,
		Logger:      logger,
	})
	err = a.setupVenues()
	if err != nil {
		a.healthCache.Close()
		return nil, fmt.Errorf("setup venues: %w", err)
	}

	a.poller, err = feed.NewPoller(&feed.PollerConfig{
		Registry:    a.registry,
		Updater:     a.prices,
		Assets:      cfg.Assets,
		Interval:    cfg.FeedPollInterval,
		Concurrency: cfg.FeedConcurrency,
		Logger:      logger,
	})
	if err != nil {
		a.healthCache.Close()
		return nil, fmt.Errorf("setup poller: %w", err)
	}

	if cfg.FeedWSURL != "" {
		a.wsConnector, err = feed.NewWSConnector(feed.WSConfig{
			URL:                   cfg.FeedWSURL,
			Assets:                cfg.Assets,
			DialTimeout:           cfg.WSDialTimeout,
			PingInterval:          cfg.WSPingInterval,
			ReconnectInitialDelay: cfg.WSReconnectDelay,
			ReconnectMaxDelay:     cfg.WSReconnectMax,
			Out:                   a.ticks,
			Logger:                logger,
		})
		if err != nil {
			a.healthCache.Close()
			return nil, fmt.Errorf("setup ws connector: %w", err)
		}
	}

	a.breaker, err = circuitbreaker.New(&circuitbreaker.Config{
		InitialBackoff: cfg.ErrorBackoffInitial,
		MaxBackoff:     cfg.ErrorBackoffMax,
		Multiplier:     cfg.ErrorBackoffMult,
		MaxConsecutive: cfg.MaxConsecutiveErrors,
		Logger:         logger,
	})
	if err != nil {
		a.healthCache.Close()
		return nil, fmt.Errorf("setup loop breaker: %w", err)
	}

	store, err := setupStorage(cfg, logger)
	if err != nil {
		a.healthCache.Close()
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	a.sink = storage.NewAsyncSink(&storage.AsyncSinkConfig{
		Storage:    store,
		BufferSize: cfg.SinkBufferSize,
		Logger:     logger,
	})

	a.engine, err = NewEngine(cfg, logger, EngineDeps{
		Source:   a.prices,
		Registry: a.registry,
		Sink:     a.sink,
		Breaker:  a.breaker,
	})
	if err != nil {
		a.sink.Close()
		a.healthCache.Close()
		return nil, fmt.Errorf("setup engine: %w", err)
	}

	a.setupHealthChecks()
	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: a.healthChecker,
		Controller:    a.engine,
		Venues:        a.registry,
		Prices:        a.prices,
	})

	return a, nil
}

func setupHealthCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		Name:        "venue-health",
		NumCounters: 1000, // 10x expected venues * probes
		MaxCost:     100,
		BufferItems: 64,
		Logger:      logger,
	})
}

// setupVenues registers one HTTP client per venue in live mode and a seeded
// simulator per venue otherwise.
func (a *App) setupVenues() error {
	if a.cfg.ExecutionMode == "live" {
		for _, name := range a.cfg.Venues {
			v, err := venue.NewHTTPVenue(&venue.HTTPVenueConfig{
				Name:       name,
				BaseURL:    a.cfg.VenueURLs[name],
				APIKey:     a.cfg.VenueAPIKey,
				Secret:     a.cfg.VenueAPISecret,
				Passphrase: a.cfg.VenueAPIPassphrase,
				Timeout:    a.cfg.VenueTimeout,
				Logger:     a.logger,
			})
			if err != nil {
				return fmt.Errorf("create venue %s: %w", name, err)
			}
			a.registry.Register(v)
		}
		return nil
	}

	for _, name := range a.cfg.Venues {
		prices := make(map[string]float64, len(a.cfg.SimPrices))
		for asset, p := range a.cfg.SimPrices {
			prices[asset] = p
		}
		for asset, p := range a.cfg.SimVenuePrices[name] {
			prices[asset] = p
		}

		sim := venue.NewExecutionSimulator(&venue.SimulatorConfig{
			Name:         name,
			Quote:        a.cfg.Numeraire,
			FeeBps:       a.cfg.SimFeeBps,
			ConfirmPolls: a.cfg.SimConfirmPolls,
			Liquidity:    a.cfg.SimLiquidity,
			Prices:       prices,
			Logger:       a.logger,
		})
		a.simulators[name] = sim
		a.registry.Register(sim)
	}
	return nil
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Migrate:  cfg.PostgresMigrate,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

// EngineDeps are the collaborators an engine is built around. Registry may
// be nil only in dry-run mode; Breaker defaults to one built from cfg.
type EngineDeps struct {
	Source   engine.SnapshotSource
	Registry *venue.Registry
	Sink     engine.Sink
	Breaker  *circuitbreaker.LoopBreaker
}

// NewEngine assembles detector, scorer, risk gate and executor from cfg.
// The scan command uses it with a static source.
func NewEngine(cfg *config.Config, logger *zap.Logger, deps EngineDeps) (*engine.Engine, error) {
	if deps.Registry == nil && cfg.ExecutionMode != engine.ModeDryRun {
		return nil, fmt.Errorf("%s mode needs a venue registry", cfg.ExecutionMode)
	}

	breaker := deps.Breaker
	if breaker == nil {
		var err error
		breaker, err = circuitbreaker.New(&circuitbreaker.Config{
			InitialBackoff: cfg.ErrorBackoffInitial,
			MaxBackoff:     cfg.ErrorBackoffMax,
			Multiplier:     cfg.ErrorBackoffMult,
			MaxConsecutive: cfg.MaxConsecutiveErrors,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create loop breaker: %w", err)
		}
	}

	state := risk.NewState(&risk.StateConfig{
		HistorySize:           cfg.HistorySize,
		EmergencyStopLoss:     cfg.EmergencyStopLoss,
		DefaultMaxPosition:    cfg.MaxPositionSize,
		DefaultMaxDailyVolume: cfg.MaxDailyVolume,
		PositionLimits:        cfg.PositionLimits,
		Now:                   time.Now(),
		Logger:                logger,
	})

	gate := risk.NewGate(&risk.GateConfig{
		Numeraire:              cfg.Numeraire,
		TotalCapital:           cfg.TotalCapital,
		MaxDailyTrades:         cfg.MaxDailyTrades,
		DailyLossLimit:         cfg.DailyLossLimit,
		MaxCorrelationExposure: cfg.MaxCorrelationExposure,
		MaxDrawdown:            cfg.MaxDrawdown,
		MaxKellyFraction:       cfg.MaxKellyFraction,
		MinConfidence:          cfg.GateMinConfidence,
		DefaultVolatility:      cfg.DefaultVolatility,
		Volatilities:           cfg.Volatilities,
		Correlations:           cfg.Correlations,
		Logger:                 logger,
	}, state)

	exec, err := setupExecutor(cfg, logger, deps.Registry, state)
	if err != nil {
		return nil, err
	}

	ecfg := &engine.Config{
		Source: deps.Source,
		Detector: arbitrage.NewDetector(&arbitrage.DetectorConfig{
			MaxCycleLength: cfg.MaxCycleLength,
			Numeraire:      cfg.Numeraire,
			Logger:         logger,
		}),
		Scorer: arbitrage.NewScorer(&arbitrage.ScorerConfig{
			MaxTradeSize:      cfg.MaxTradeSize,
			LiquidityFraction: cfg.LiquidityFraction,
			DefaultLiquidity:  cfg.DefaultLiquidity,
			MinProfitPercent:  cfg.MinProfitPercent,
			MinConfidence:     cfg.MinConfidence,
			MaxSampleAge:      cfg.MaxSampleAge,
			Logger:            logger,
		}),
		Gate:             gate,
		Breaker:          breaker,
		PollInterval:     cfg.PollInterval,
		SlippageBps:      cfg.SlippageBps,
		ExecutionTimeout: cfg.ExecutionTimeout,
		Logger:           logger,
	}
	// typed nils would defeat the engine's nil checks
	if exec != nil {
		ecfg.Executor = exec
	}
	if deps.Registry != nil {
		ecfg.Health = deps.Registry
	}
	if deps.Sink != nil {
		ecfg.Sink = deps.Sink
	}

	return engine.New(ecfg)
}

// setupExecutor returns nil in dry-run mode: opportunities are assessed and
// recorded but never sent to a venue.
func setupExecutor(cfg *config.Config, logger *zap.Logger, registry *venue.Registry, state *risk.State) (*execution.Executor, error) {
	if cfg.ExecutionMode == engine.ModeDryRun {
		logger.Info("executor-disabled-dry-run-mode",
			zap.String("note", "opportunities will be detected and assessed only"))
		return nil, nil
	}

	backoff := execution.BackoffConfig{
		InitialDelay:      cfg.ConfirmInitialDelay,
		MaxDelay:          cfg.ConfirmMaxDelay,
		BackoffMultiplier: 2,
	}

	exec, err := execution.New(&execution.Config{
		Mode:               cfg.ExecutionMode,
		Numeraire:          cfg.Numeraire,
		Registry:           registry,
		State:              state,
		MaxSubmitAttempts:  cfg.MaxSubmitAttempts,
		SubmitBackoff:      backoff,
		MaxConfirmAttempts: cfg.MaxConfirmAttempts,
		ConfirmBackoff:     backoff,
		InterLegDelay:      cfg.InterLegDelay,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create executor: %w", err)
	}
	return exec, nil
}

var (
	errBreakerOpen = errors.New("engine loop breaker is open")
	errNoPrices    = errors.New("no fresh price samples")
)

func (a *App) setupHealthChecks() {
	a.healthChecker.AddCheck("loop-breaker", func() error {
		if !a.breaker.IsEnabled() {
			return errBreakerOpen
		}
		return nil
	})
	a.healthChecker.AddCheck("prices", func() error {
		snap, err := a.prices.Snapshot(time.Now())
		if err != nil {
			return err
		}
		if len(snap.Samples) == 0 {
			return errNoPrices
		}
		return nil
	})
}
