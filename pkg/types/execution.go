package types

import "time"

// Side is the direction of a leg relative to the sample's asset.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// LegStatus is the lifecycle status of a single execution attempt.
type LegStatus string

const (
	LegPending   LegStatus = "pending"
	LegSubmitted LegStatus = "submitted"
	LegConfirmed LegStatus = "confirmed"
	LegFailed    LegStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s LegStatus) Terminal() bool {
	return s == LegConfirmed || s == LegFailed
}

// Outcome is the terminal result of executing an opportunity.
type Outcome string

const (
	OutcomeSettled    Outcome = "settled"
	OutcomeFailed     Outcome = "failed"
	OutcomeUnbalanced Outcome = "unbalanced"
)

// ExecutionAttempt records one leg's lifecycle.
type ExecutionAttempt struct {
	Index         int       `json:"index"`
	Venue         string    `json:"venue"`
	Side          Side      `json:"side"`
	Asset         string    `json:"asset"`
	FromAsset     string    `json:"from_asset"`
	ToAsset       string    `json:"to_asset"`
	RequestedSize float64   `json:"requested_size"`
	ExpectedPrice float64   `json:"expected_price"`
	RealizedPrice float64   `json:"realized_price"`
	FeeCost       float64   `json:"fee_cost"`
	Receipt       string    `json:"receipt"`
	Status        LegStatus `json:"status"`
	Reason        string    `json:"reason"`
	Submits       int       `json:"submits"`
	Polls         int       `json:"polls"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// ExecutionResult contains the result of executing an arbitrage opportunity.
type ExecutionResult struct {
	OpportunityID      string              `json:"opportunity_id"`
	Mode               string              `json:"mode"`
	ExecutedAt         time.Time           `json:"executed_at"`
	CompletedAt        time.Time           `json:"completed_at"`
	States             []string            `json:"states"`
	Attempts           []*ExecutionAttempt `json:"attempts"`
	Outcome            Outcome             `json:"outcome"`
	EstimatedProfit    float64             `json:"estimated_profit"`
	TotalFees          float64             `json:"total_fees"`
	NetProfit          float64             `json:"net_profit"`
	RealizedLoss       float64             `json:"realized_loss"`
	InsufficientProfit bool                `json:"insufficient_profit"`
	Reason             string              `json:"reason"`
	Error              error               `json:"-"`
}

// Success reports whether every leg settled.
func (r *ExecutionResult) Success() bool {
	return r.Outcome == OutcomeSettled
}

// TradeOutcome is the compact record kept in the trailing risk history.
type TradeOutcome struct {
	OpportunityID string    `json:"opportunity_id"`
	Outcome       Outcome   `json:"outcome"`
	PnL           float64   `json:"pnl"`
	Fees          float64   `json:"fees"`
	Size          float64   `json:"size"`
	At            time.Time `json:"at"`
}
