package venue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

// ErrSimulatedTransport is the default error for scripted submit failures.
var ErrSimulatedTransport = errors.New("simulated transport failure")

// Outcome scripts the result of one SubmitSwap call on the simulator.
// The zero value is a clean fill confirmed after the configured polls.
type Outcome struct {
	SubmitErr    error         // returned as a transport error
	Reject       string        // venue-level rejection reason
	Final        ConfirmStatus // defaults to confirmed
	PendingPolls int           // overrides the default pending poll count when > 0
	SlippageBps  float64       // adverse price move applied to the fill
}

// ExecutionSimulator is a deterministic in-process venue used for paper
// trading and tests. Results come from a FIFO script of Outcomes; once the
// script is exhausted every swap fills cleanly.
type ExecutionSimulator struct {
	name         string
	quote        string
	feeBps       float64
	confirmPolls int
	liquidity    float64
	now          func() time.Time
	logger       *zap.Logger

	mu       sync.Mutex
	prices   map[string]float64
	script   []Outcome
	pending  map[string]*pendingSwap
	seq      uint64
	healthy  bool
	submits  int
	confirms int
}

type pendingSwap struct {
	pollsLeft int
	final     ConfirmStatus
}

// SimulatorConfig holds simulator configuration.
type SimulatorConfig struct {
	Name         string
	Quote        string
	FeeBps       float64
	ConfirmPolls int // pending answers before the final status
	Liquidity    float64
	Prices       map[string]float64 // asset -> price in Quote
	Now          func() time.Time
	Logger       *zap.Logger
}

// NewExecutionSimulator creates a simulator venue.
func NewExecutionSimulator(cfg *SimulatorConfig) *ExecutionSimulator {
	if cfg.Quote == "" {
		cfg.Quote = "USDC"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	prices := make(map[string]float64, len(cfg.Prices))
	for asset, p := range cfg.Prices {
		prices[asset] = p
	}

	return &ExecutionSimulator{
		name:         cfg.Name,
		quote:        cfg.Quote,
		feeBps:       cfg.FeeBps,
		confirmPolls: cfg.ConfirmPolls,
		liquidity:    cfg.Liquidity,
		now:          cfg.Now,
		logger:       cfg.Logger.With(zap.String("venue", cfg.Name)),
		prices:       prices,
		pending:      make(map[string]*pendingSwap),
		healthy:      true,
	}
}

// Name returns the venue name.
func (s *ExecutionSimulator) Name() string {
	return s.name
}

// Script appends outcomes consumed by subsequent SubmitSwap calls.
func (s *ExecutionSimulator) Script(outcomes ...Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, outcomes...)
}

// SetPrice sets the quoted price for an asset.
func (s *ExecutionSimulator) SetPrice(asset string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[asset] = price
}

// SetHealthy toggles the reported health.
func (s *ExecutionSimulator) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

// Calls returns how many submits and confirms the simulator has served.
func (s *ExecutionSimulator) Calls() (submits, confirms int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits, s.confirms
}

// GetPrices returns one sample per requested asset with a configured price.
// An empty assets list returns every configured price.
func (s *ExecutionSimulator) GetPrices(ctx context.Context, assets []string) ([]types.PriceSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(assets) == 0 {
		for asset := range s.prices {
			assets = append(assets, asset)
		}
		sort.Strings(assets)
	}

	now := s.now()
	samples := make([]types.PriceSample, 0, len(assets))
	for _, asset := range assets {
		p, ok := s.prices[asset]
		if !ok {
			continue
		}
		samples = append(samples, types.PriceSample{
			Asset:      asset,
			Quote:      s.quote,
			Venue:      s.name,
			Price:      p,
			Liquidity:  s.liquidity,
			CapturedAt: now,
		})
	}
	return samples, nil
}

// SubmitSwap consumes the next scripted outcome.
func (s *ExecutionSimulator) SubmitSwap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.submits++
	out := Outcome{}
	if len(s.script) > 0 {
		out = s.script[0]
		s.script = s.script[1:]
	}

	if out.SubmitErr != nil {
		SimulatedSwapsTotal.WithLabelValues(s.name, "error").Inc()
		return nil, out.SubmitErr
	}

	fee := req.Amount * s.feeBps / 10000
	if out.Reject != "" {
		SimulatedSwapsTotal.WithLabelValues(s.name, "rejected").Inc()
		return &SwapResult{Success: false, Reason: out.Reject}, nil
	}

	price := req.ExpectedPrice
	switch req.Side {
	case types.SideBuy:
		price *= 1 + out.SlippageBps/10000
	case types.SideSell:
		price *= 1 - out.SlippageBps/10000
	}

	amountOut := req.Amount - fee
	if req.ExpectedPrice > 0 {
		switch req.Side {
		case types.SideBuy:
			amountOut = (req.Amount - fee) * req.ExpectedPrice / price
		case types.SideSell:
			amountOut = (req.Amount - fee) * price / req.ExpectedPrice
		}
	}

	if req.MinOutAmount > 0 && amountOut < req.MinOutAmount {
		SimulatedSwapsTotal.WithLabelValues(s.name, "rejected").Inc()
		return &SwapResult{
			Success: false,
			Reason:  fmt.Sprintf("slippage exceeded: out %.6f < min %.6f", amountOut, req.MinOutAmount),
		}, nil
	}

	s.seq++
	receipt := s.receipt(req)

	final := out.Final
	if final == "" {
		final = ConfirmConfirmed
	}
	polls := s.confirmPolls
	if out.PendingPolls > 0 {
		polls = out.PendingPolls
	}
	s.pending[receipt] = &pendingSwap{pollsLeft: polls, final: final}

	SimulatedSwapsTotal.WithLabelValues(s.name, "submitted").Inc()
	s.logger.Debug("simulated-swap-submitted",
		zap.String("receipt", receipt),
		zap.String("side", string(req.Side)),
		zap.String("asset", req.Asset),
		zap.Float64("amount", req.Amount),
		zap.Float64("fee", fee))

	return &SwapResult{
		Success:       true,
		Receipt:       receipt,
		FeeCost:       fee,
		RealizedPrice: price,
		AmountOut:     amountOut,
	}, nil
}

// receipt derives a deterministic transaction-hash style id. Caller holds mu.
func (s *ExecutionSimulator) receipt(req SwapRequest) string {
	payload := s.name + "|" + strconv.FormatUint(s.seq, 10) + "|" + string(req.Side) + "|" +
		req.Asset + "|" + strconv.FormatFloat(req.Amount, 'f', -1, 64)
	return crypto.Keccak256Hash([]byte(payload)).Hex()
}

// Confirm reports pending until the swap's poll budget is spent, then its
// final status.
func (s *ExecutionSimulator) Confirm(ctx context.Context, receipt string) (ConfirmStatus, error) {
	if err := ctx.Err(); err != nil {
		return ConfirmPending, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.confirms++
	p, ok := s.pending[receipt]
	if !ok {
		return ConfirmFailed, fmt.Errorf("%w: %s", ErrUnknownReceipt, receipt)
	}
	if p.pollsLeft > 0 {
		p.pollsLeft--
		return ConfirmPending, nil
	}
	return p.final, nil
}

// HealthStatus reports the configured health.
func (s *ExecutionSimulator) HealthStatus(ctx context.Context) Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := Health{Venue: s.name, Healthy: s.healthy, CheckedAt: s.now()}
	if !s.healthy {
		h.Message = "simulator marked unhealthy"
	}
	return h
}
