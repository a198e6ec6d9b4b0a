package app

import (
	"github.com/mselser95/cycle-arb/internal/circuitbreaker"
	"github.com/mselser95/cycle-arb/internal/engine"
	"github.com/mselser95/cycle-arb/internal/feed"
	"github.com/mselser95/cycle-arb/internal/pricecache"
	"github.com/mselser95/cycle-arb/internal/storage"
	"github.com/mselser95/cycle-arb/internal/venue"
	"github.com/mselser95/cycle-arb/pkg/cache"
	"github.com/mselser95/cycle-arb/pkg/config"
	"github.com/mselser95/cycle-arb/pkg/healthprobe"
	"github.com/mselser95/cycle-arb/pkg/httpserver"
	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

// App wires the price feeds, the engine and the operator surface together.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	healthCache   cache.Cache
	prices        *pricecache.Cache
	registry      *venue.Registry
	simulators    map[string]*venue.ExecutionSimulator // paper mode only
	poller        *feed.Poller
	ticks         chan types.PriceSample
	wsConnector   *feed.WSConnector // nil unless FEED_WS_URL is set
	breaker       *circuitbreaker.LoopBreaker
	sink          *storage.AsyncSink
	engine        *engine.Engine
}

// Options holds application options.
type Options struct {
	// ExecutionMode overrides cfg.ExecutionMode when set.
	ExecutionMode string
}

// Engine returns the engine, mainly for the control surface.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Simulator returns the paper venue registered under name.
func (a *App) Simulator(name string) (*venue.ExecutionSimulator, bool) {
	sim, ok := a.simulators[name]
	return sim, ok
}
