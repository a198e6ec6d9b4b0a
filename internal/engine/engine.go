package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mselser95/cycle-arb/internal/arbitrage"
	"github.com/mselser95/cycle-arb/internal/circuitbreaker"
	"github.com/mselser95/cycle-arb/internal/execution"
	"github.com/mselser95/cycle-arb/internal/risk"
	"github.com/mselser95/cycle-arb/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ModeDryRun is reported when no executor is configured.
const ModeDryRun = "dry-run"

// SnapshotSource yields a consistent view of fresh samples.
// *pricecache.Cache satisfies it.
type SnapshotSource interface {
	Snapshot(now time.Time) (types.Snapshot, error)
}

// Executor runs an approved request to a terminal outcome.
type Executor interface {
	Mode() string
	Execute(ctx context.Context, req *execution.Request) *types.ExecutionResult
}

// HealthChecker reports whether every named venue can take orders.
// *venue.Registry satisfies it.
type HealthChecker interface {
	Healthy(ctx context.Context, names ...string) bool
}

// Sink receives opportunity and execution records. Implementations must not
// block the loop.
type Sink interface {
	PublishOpportunity(opp *arbitrage.Opportunity)
	PublishExecution(result *types.ExecutionResult)
}

// Config holds engine configuration.
type Config struct {
	Source   SnapshotSource
	Detector *arbitrage.Detector
	Scorer   *arbitrage.Scorer
	Gate     *risk.Gate
	Executor Executor      // nil runs detection and assessment only
	Health   HealthChecker // optional
	Sink     Sink          // optional
	Breaker  *circuitbreaker.LoopBreaker

	PollInterval     time.Duration
	SlippageBps      float64
	// ExecutionTimeout bounds an execution once started. Shutdown does not
	// cancel it.
	ExecutionTimeout time.Duration
	Now              func() time.Time
	Logger           *zap.Logger
}

// CycleReport describes what one cycle saw and did.
type CycleReport struct {
	At            time.Time                `json:"at"`
	Samples       int                      `json:"samples"`
	StaleSamples  int                      `json:"stale_samples"`
	Cycles        int                      `json:"cycles"`
	Opportunities []*arbitrage.Opportunity `json:"opportunities"`
	Assessments   []*risk.Assessment       `json:"assessments"`
	Result        *types.ExecutionResult   `json:"result,omitempty"`
	Skipped       string                   `json:"skipped,omitempty"`
}

// Status is the control-surface view of the engine.
type Status struct {
	Mode          string                `json:"mode"`
	Halted        bool                  `json:"halted"`
	Breaker       circuitbreaker.Status `json:"breaker"`
	Risk          risk.Summary          `json:"risk"`
	Cycles        int64                 `json:"cycles"`
	FailedCycles  int64                 `json:"failed_cycles"`
	Opportunities int64                 `json:"opportunities"`
	Executions    int64                 `json:"executions"`
	LastCycleAt   time.Time             `json:"last_cycle_at,omitempty"`
	LastError     string                `json:"last_error,omitempty"`
}

// Engine is the single cooperative loop driving detection, risk and execution.
type Engine struct {
	source   SnapshotSource
	detector *arbitrage.Detector
	scorer   *arbitrage.Scorer
	gate     *risk.Gate
	executor Executor
	health   HealthChecker
	sink     Sink
	breaker  *circuitbreaker.LoopBreaker

	pollInterval     time.Duration
	slippageBps      float64
	executionTimeout time.Duration
	now              func() time.Time
	logger           *zap.Logger

	halted        atomic.Bool
	cycles        atomic.Int64
	failedCycles  atomic.Int64
	opportunities atomic.Int64
	executions    atomic.Int64

	mu          sync.RWMutex
	lastCycleAt time.Time
	lastError   string
}

// New creates an engine.
func New(cfg *Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, errors.New("snapshot source cannot be nil")
	}
	if cfg.Detector == nil || cfg.Scorer == nil {
		return nil, errors.New("detector and scorer are required")
	}
	if cfg.Gate == nil {
		return nil, errors.New("risk gate cannot be nil")
	}
	if cfg.Breaker == nil {
		return nil, errors.New("loop breaker cannot be nil")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Engine{
		source:       cfg.Source,
		detector:     cfg.Detector,
		scorer:       cfg.Scorer,
		gate:         cfg.Gate,
		executor:     cfg.Executor,
		health:       cfg.Health,
		sink:         cfg.Sink,
		breaker:      cfg.Breaker,
		pollInterval:     cfg.PollInterval,
		slippageBps:      cfg.SlippageBps,
		executionTimeout: cfg.ExecutionTimeout,
		now:              cfg.Now,
		logger:           cfg.Logger,
	}, nil
}

// Run drives cycles until ctx is done. Loop-level errors back off through
// the breaker; once it trips the loop idles until ResetBreaker.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine-starting",
		zap.String("mode", e.Mode()),
		zap.Duration("poll-interval", e.pollInterval))

	for {
		// shutdown is only observed between cycles
		if ctx.Err() != nil {
			e.logger.Info("engine-stopping")
			return nil
		}

		wait := e.pollInterval

		switch {
		case e.halted.Load():
		case !e.breaker.IsEnabled():
			e.logger.Debug("engine-breaker-open")
		default:
			_, err := e.RunCycle(ctx)
			if err != nil {
				backoff, enabled := e.breaker.RecordFailure(err)
				LoopBackoffSeconds.Observe(backoff.Seconds())
				if enabled {
					wait = backoff
				}
			} else {
				e.breaker.RecordSuccess()
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// RunCycle performs one snapshot, detect, assess, execute pass. Only
// infrastructure failures are returned; data-quality problems and rejected or
// failed trades are part of a successful cycle.
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	timer := prometheus.NewTimer(CycleDurationSeconds)
	defer timer.ObserveDuration()

	now := e.now()
	report := &CycleReport{At: now}
	e.cycles.Add(1)

	report, err := e.runCycle(ctx, report)
	e.mu.Lock()
	e.lastCycleAt = now
	if err != nil {
		e.lastError = err.Error()
	} else {
		e.lastError = ""
	}
	e.mu.Unlock()

	if err != nil {
		e.failedCycles.Add(1)
		CyclesTotal.WithLabelValues("error").Inc()
		e.logger.Error("engine-cycle-failed", zap.Error(err))
		return report, err
	}

	CyclesTotal.WithLabelValues("ok").Inc()
	return report, nil
}

func (e *Engine) runCycle(ctx context.Context, report *CycleReport) (*CycleReport, error) {
	snap, err := e.source.Snapshot(report.At)
	if err != nil {
		return report, fmt.Errorf("read snapshot: %w", err)
	}
	report.Samples = len(snap.Samples)
	report.StaleSamples = snap.Stale

	cycles, err := e.detector.DetectCycles(snap)
	if err != nil {
		return report, fmt.Errorf("detect cycles: %w", err)
	}
	report.Cycles = len(cycles)

	candidates := make([]*arbitrage.Opportunity, 0, len(cycles))
	seen := make(map[string]bool, len(cycles))
	for _, c := range cycles {
		opp := e.scorer.Score(c, report.At)
		if !seen[opp.Key()] {
			seen[opp.Key()] = true
			candidates = append(candidates, opp)
		}
	}
	for _, opp := range e.scorer.FindSpreads(snap, report.At) {
		if !seen[opp.Key()] {
			seen[opp.Key()] = true
			candidates = append(candidates, opp)
		}
	}

	report.Opportunities = e.scorer.Filter(candidates)
	e.opportunities.Add(int64(len(report.Opportunities)))

	for _, opp := range report.Opportunities {
		e.logger.Info("opportunity-detected",
			zap.String("opportunity-id", opp.ID),
			zap.String("kind", string(opp.Kind)),
			zap.String("path", opp.Path()),
			zap.Strings("venues", opp.Venues()),
			zap.Int("profit-bps", opp.ProfitBPS),
			zap.Float64("confidence", opp.Confidence),
			zap.Float64("size", opp.TradeSize))
		if e.sink != nil {
			e.sink.PublishOpportunity(opp)
		}
	}

	e.executeBest(ctx, report)
	return report, nil
}

// executeBest assesses opportunities best-first and executes the first one
// the gate approves. At most one execution runs per cycle.
func (e *Engine) executeBest(ctx context.Context, report *CycleReport) {
	for _, opp := range report.Opportunities {
		if ctx.Err() != nil {
			report.Skipped = "shutdown"
			return
		}

		a := e.gate.Assess(opp)
		report.Assessments = append(report.Assessments, a)

		if !a.Approved {
			if e.gate.State().EmergencyStopped() {
				report.Skipped = "emergency-stop"
				return
			}
			continue
		}

		if a.AdjustedSize <= 0 {
			report.Skipped = "zero-size"
			ExecutionsSkippedTotal.WithLabelValues("zero-size").Inc()
			e.logger.Info("execution-skipped-zero-size",
				zap.String("opportunity-id", opp.ID),
				zap.Float64("kelly-fraction", a.KellyFraction))
			continue
		}

		if e.executor == nil {
			report.Skipped = "dry-run"
			ExecutionsSkippedTotal.WithLabelValues("dry-run").Inc()
			e.logger.Info("execution-skipped-dry-run",
				zap.String("opportunity-id", opp.ID),
				zap.Float64("adjusted-size", a.AdjustedSize))
			return
		}

		if e.health != nil && !e.health.Healthy(ctx, opp.Venues()...) {
			ExecutionsSkippedTotal.WithLabelValues("venue-unhealthy").Inc()
			e.logger.Warn("execution-skipped-venue-unhealthy",
				zap.String("opportunity-id", opp.ID),
				zap.Strings("venues", opp.Venues()))
			continue
		}

		req := execution.NewRequest(opp, a.AdjustedSize, e.slippageBps)
		execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.executionTimeout)
		result := e.executor.Execute(execCtx, req)
		cancel()
		report.Result = result
		e.executions.Add(1)

		if e.sink != nil {
			e.sink.PublishExecution(result)
		}
		return
	}
}

// Mode reports the executor mode, or dry-run when there is none.
func (e *Engine) Mode() string {
	if e.executor == nil {
		return ModeDryRun
	}
	return e.executor.Mode()
}

// Pause sets the halted flag consulted before each cycle.
func (e *Engine) Pause() {
	if !e.halted.Swap(true) {
		Halted.Set(1)
		e.logger.Warn("engine-paused")
	}
}

// Resume clears the halted flag.
func (e *Engine) Resume() {
	if e.halted.Swap(false) {
		Halted.Set(0)
		e.logger.Info("engine-resumed")
	}
}

// IsHalted reports whether the engine is paused.
func (e *Engine) IsHalted() bool {
	return e.halted.Load()
}

// ResetEmergencyStop clears the risk emergency stop.
func (e *Engine) ResetEmergencyStop() {
	e.gate.State().ResetEmergencyStop()
}

// ResetBreaker re-enables the loop after the breaker tripped.
func (e *Engine) ResetBreaker() {
	e.breaker.Reset()
}

// Status returns a snapshot of loop, breaker and risk state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	lastCycleAt, lastError := e.lastCycleAt, e.lastError
	e.mu.RUnlock()

	return Status{
		Mode:          e.Mode(),
		Halted:        e.halted.Load(),
		Breaker:       e.breaker.GetStatus(),
		Risk:          e.gate.State().Summary(),
		Cycles:        e.cycles.Load(),
		FailedCycles:  e.failedCycles.Load(),
		Opportunities: e.opportunities.Load(),
		Executions:    e.executions.Load(),
		LastCycleAt:   lastCycleAt,
		LastError:     lastError,
	}
}
