package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mselser95/cycle-arb/internal/risk"
	"github.com/mselser95/cycle-arb/internal/venue"
	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

// Executor runs an approved opportunity's legs strictly in sequence and
// books the outcome into the shared risk state.
type Executor struct {
	mode      string // "paper" or "live"
	numeraire string
	registry  *venue.Registry
	state     *risk.State
	logger    *zap.Logger

	maxSubmitAttempts  int
	submitBackoff      BackoffConfig
	maxConfirmAttempts int
	confirmBackoff     BackoffConfig
	interLegDelay      time.Duration

	mu               sync.Mutex
	cumulativeProfit float64
	executions       int
}

// Config holds executor configuration.
type Config struct {
	Mode               string
	Numeraire          string
	Registry           *venue.Registry
	State              *risk.State
	MaxSubmitAttempts  int
	SubmitBackoff      BackoffConfig
	MaxConfirmAttempts int
	ConfirmBackoff     BackoffConfig
	InterLegDelay      time.Duration
	Logger             *zap.Logger
}

// New creates a new trade executor.
func New(cfg *Config) (*Executor, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("venue registry cannot be nil")
	}
	if cfg.State == nil {
		return nil, fmt.Errorf("risk state cannot be nil")
	}
	if cfg.Mode != "paper" && cfg.Mode != "live" {
		return nil, fmt.Errorf("unknown execution mode: %s", cfg.Mode)
	}
	if cfg.MaxSubmitAttempts <= 0 {
		cfg.MaxSubmitAttempts = 3
	}
	if cfg.MaxConfirmAttempts <= 0 {
		cfg.MaxConfirmAttempts = 30
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Executor{
		mode:               cfg.Mode,
		numeraire:          cfg.Numeraire,
		registry:           cfg.Registry,
		state:              cfg.State,
		logger:             cfg.Logger,
		maxSubmitAttempts:  cfg.MaxSubmitAttempts,
		submitBackoff:      cfg.SubmitBackoff,
		maxConfirmAttempts: cfg.MaxConfirmAttempts,
		confirmBackoff:     cfg.ConfirmBackoff,
		interLegDelay:      cfg.InterLegDelay,
	}, nil
}

// Mode returns the execution mode.
func (e *Executor) Mode() string {
	return e.mode
}

// Execute runs every hop of req and always returns a result in a terminal
// outcome. Cancelling ctx fails the current leg instead of abandoning it.
func (e *Executor) Execute(ctx context.Context, req *Request) *types.ExecutionResult {
	start := time.Now()
	opp := req.Opportunity

	result := &types.ExecutionResult{
		OpportunityID:   opp.ID,
		Mode:            e.mode,
		ExecutedAt:      start,
		States:          []string{"pending"},
		EstimatedProfit: req.EstimatedProfit(),
	}

	e.logger.Info("execution-starting",
		zap.String("opportunity-id", opp.ID),
		zap.String("path", opp.Path()),
		zap.Strings("venues", req.Venues),
		zap.Float64("size", req.Size),
		zap.Float64("estimated-profit", result.EstimatedProfit))

	var legErr error
	for i, hop := range req.Hops {
		n := i + 1

		if i > 0 && e.interLegDelay > 0 {
			err := sleep(ctx, e.interLegDelay)
			if err != nil {
				att := e.newAttempt(n, req.Venues[i], hop)
				e.failAttempt(att, fmt.Sprintf("cancelled before submission: %v", err))
				result.Attempts = append(result.Attempts, att)
				legErr = &types.LegError{Leg: n, Venue: att.Venue, Message: att.Reason, Err: types.ErrLegExecution}
				break
			}
		}

		result.States = append(result.States, fmt.Sprintf("leg%d-executing", n))
		att, err := e.runLeg(ctx, n, req.Venues[i], hop)
		result.Attempts = append(result.Attempts, att)
		if err != nil {
			legErr = err
			break
		}
		result.States = append(result.States, fmt.Sprintf("leg%d-confirmed", n))
	}

	e.finalize(req, result, legErr)
	result.CompletedAt = time.Now()

	ExecutionDurationSeconds.Observe(time.Since(start).Seconds())
	ExecutionsTotal.WithLabelValues(e.mode, string(result.Outcome)).Inc()

	return result
}

func (e *Executor) newAttempt(n int, venueName string, hop venue.SwapRequest) *types.ExecutionAttempt {
	return &types.ExecutionAttempt{
		Index:         n,
		Venue:         venueName,
		Side:          hop.Side,
		Asset:         hop.Asset,
		FromAsset:     hop.From,
		ToAsset:       hop.To,
		RequestedSize: hop.Amount,
		ExpectedPrice: hop.ExpectedPrice,
		Status:        types.LegPending,
		StartedAt:     time.Now(),
	}
}

func (e *Executor) failAttempt(att *types.ExecutionAttempt, reason string) {
	att.Status = types.LegFailed
	att.Reason = reason
	att.FinishedAt = time.Now()
	LegsTotal.WithLabelValues(att.Venue, string(types.LegFailed)).Inc()
}

// runLeg submits one hop with bounded retries and polls for confirmation.
func (e *Executor) runLeg(ctx context.Context, n int, venueName string, hop venue.SwapRequest) (*types.ExecutionAttempt, error) {
	att := e.newAttempt(n, venueName, hop)

	legFailure := func(reason string) error {
		e.failAttempt(att, reason)
		e.logger.Warn("leg-failed",
			zap.Int("leg", n),
			zap.String("venue", venueName),
			zap.String("receipt", att.Receipt),
			zap.String("reason", reason))
		return &types.LegError{Leg: n, Venue: venueName, Receipt: att.Receipt, Message: reason, Err: types.ErrLegExecution}
	}

	v, err := e.registry.Get(venueName)
	if err != nil {
		return att, legFailure(err.Error())
	}

	// submit
	backoff := NewBackoff(e.submitBackoff)
	lastReason := ""
	for att.Submits < e.maxSubmitAttempts {
		att.Submits++

		res, err := v.SubmitSwap(ctx, hop)
		switch {
		case err != nil:
			lastReason = err.Error()
		case !res.Success:
			lastReason = res.Reason
			att.FeeCost += res.FeeCost
		default:
			att.Receipt = res.Receipt
			att.FeeCost += res.FeeCost
			att.RealizedPrice = res.RealizedPrice
		}
		if att.Receipt != "" {
			break
		}

		SubmitFailuresTotal.WithLabelValues(venueName).Inc()
		e.logger.Debug("leg-submit-failed",
			zap.Int("leg", n),
			zap.String("venue", venueName),
			zap.Int("attempt", att.Submits),
			zap.String("reason", lastReason))

		if ctx.Err() != nil {
			return att, legFailure(fmt.Sprintf("cancelled during submission: %v", ctx.Err()))
		}
		if att.Submits >= e.maxSubmitAttempts {
			break
		}
		if err := sleep(ctx, backoff.Next()); err != nil {
			return att, legFailure(fmt.Sprintf("cancelled during submit backoff: %v", err))
		}
	}

	if att.Receipt == "" {
		return att, legFailure(fmt.Sprintf("submission failed after %d attempts: %s", att.Submits, lastReason))
	}

	att.Status = types.LegSubmitted
	e.logger.Debug("leg-submitted",
		zap.Int("leg", n),
		zap.String("venue", venueName),
		zap.String("receipt", att.Receipt),
		zap.Float64("fee", att.FeeCost))

	// confirm
	backoff = NewBackoff(e.confirmBackoff)
	for att.Polls < e.maxConfirmAttempts {
		att.Polls++
		ConfirmPollsTotal.WithLabelValues(venueName).Inc()

		status, err := v.Confirm(ctx, att.Receipt)
		if err == nil {
			switch status {
			case venue.ConfirmConfirmed:
				att.Status = types.LegConfirmed
				att.FinishedAt = time.Now()
				LegsTotal.WithLabelValues(venueName, string(types.LegConfirmed)).Inc()
				e.logger.Info("leg-confirmed",
					zap.Int("leg", n),
					zap.String("venue", venueName),
					zap.String("receipt", att.Receipt),
					zap.Int("polls", att.Polls))
				return att, nil
			case venue.ConfirmFailed:
				return att, legFailure("venue reported swap failed")
			}
		} else if errors.Is(err, venue.ErrUnknownReceipt) {
			return att, legFailure(err.Error())
		}

		if att.Polls >= e.maxConfirmAttempts {
			break
		}
		if err := sleep(ctx, backoff.Next()); err != nil {
			return att, legFailure(fmt.Sprintf("cancelled while awaiting confirmation: %v", err))
		}
	}

	return att, legFailure(fmt.Sprintf("confirmation timed out after %d polls", att.Polls))
}

// finalize decides the outcome and books it into risk state.
//
// Leg 1 failing costs leg 1's fee. A later leg failing leaves an unbalanced
// position and costs only the fees of legs that confirmed.
func (e *Executor) finalize(req *Request, result *types.ExecutionResult, legErr error) {
	var confirmed []*types.ExecutionAttempt
	for _, att := range result.Attempts {
		if att.Status == types.LegConfirmed {
			confirmed = append(confirmed, att)
		}
	}

	for _, att := range confirmed {
		result.TotalFees += att.FeeCost
	}

	switch {
	case legErr == nil:
		result.Outcome = types.OutcomeSettled
		result.NetProfit = result.EstimatedProfit - result.TotalFees
		if result.NetProfit < 0 {
			result.InsufficientProfit = true
			result.Reason = "insufficient-profit"
			InsufficientProfitTotal.Inc()
		}

	case len(confirmed) == 0:
		failed := result.Attempts[len(result.Attempts)-1]
		result.Outcome = types.OutcomeFailed
		result.TotalFees = failed.FeeCost
		result.RealizedLoss = failed.FeeCost
		result.NetProfit = -result.RealizedLoss
		result.Reason = legErr.Error()
		result.Error = legErr

	default:
		result.Outcome = types.OutcomeUnbalanced
		result.RealizedLoss = result.TotalFees
		result.NetProfit = -result.RealizedLoss
		result.Reason = legErr.Error()
		result.Error = fmt.Errorf("%w: %w", types.ErrUnbalancedPosition, legErr)
		UnbalancedPositionsTotal.Inc()
	}
	result.States = append(result.States, string(result.Outcome))

	e.state.RecordOutcome(types.TradeOutcome{
		OpportunityID: result.OpportunityID,
		Outcome:       result.Outcome,
		PnL:           result.NetProfit,
		Fees:          result.TotalFees,
		Size:          req.Size,
		At:            time.Now(),
	})

	// one execution books its size once per asset
	booked := make(map[string]bool)
	for _, att := range confirmed {
		for _, asset := range []string{att.FromAsset, att.ToAsset} {
			if asset == e.numeraire || booked[asset] {
				continue
			}
			booked[asset] = true
			e.state.RecordVolume(asset, att.RequestedSize)
		}
	}

	if result.Outcome == types.OutcomeUnbalanced {
		residual := confirmed[len(confirmed)-1].ToAsset
		if residual != e.numeraire {
			e.state.AddOpenPosition(residual, req.Size)
		}
		e.logger.Error("execution-unbalanced",
			zap.String("opportunity-id", result.OpportunityID),
			zap.String("residual-asset", residual),
			zap.Float64("residual-size", req.Size),
			zap.Int("confirmed-legs", len(confirmed)),
			zap.Float64("realized-loss", result.RealizedLoss),
			zap.String("reason", result.Reason))
	}

	e.mu.Lock()
	e.executions++
	e.cumulativeProfit += result.NetProfit
	cumulative := e.cumulativeProfit
	e.mu.Unlock()

	FeesPaidTotal.WithLabelValues(e.mode).Add(result.TotalFees)
	CumulativeProfit.WithLabelValues(e.mode).Set(cumulative)

	switch result.Outcome {
	case types.OutcomeSettled:
		e.logger.Info("execution-settled",
			zap.String("opportunity-id", result.OpportunityID),
			zap.Float64("estimated-profit", result.EstimatedProfit),
			zap.Float64("fees", result.TotalFees),
			zap.Float64("net-profit", result.NetProfit),
			zap.Bool("insufficient-profit", result.InsufficientProfit),
			zap.Float64("cumulative-profit", cumulative))
	case types.OutcomeFailed:
		e.logger.Warn("execution-failed",
			zap.String("opportunity-id", result.OpportunityID),
			zap.Float64("realized-loss", result.RealizedLoss),
			zap.String("reason", result.Reason))
	}
}

// Stats returns the number of executions and cumulative net profit.
func (e *Executor) Stats() (executions int, cumulativeProfit float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executions, e.cumulativeProfit
}
