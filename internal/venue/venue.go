package venue

import (
	"context"
	"errors"
	"time"

	"github.com/mselser95/cycle-arb/pkg/types"
)

// ErrUnknownVenue is returned when a venue name is not registered.
var ErrUnknownVenue = errors.New("unknown venue")

// ErrUnknownReceipt is returned by Confirm for receipts the venue never issued.
var ErrUnknownReceipt = errors.New("unknown receipt")

// ConfirmStatus is the settlement state of a submitted swap.
type ConfirmStatus string

const (
	ConfirmPending   ConfirmStatus = "pending"
	ConfirmConfirmed ConfirmStatus = "confirmed"
	ConfirmFailed    ConfirmStatus = "failed"
)

// SwapRequest asks a venue to convert Amount (numeraire units) of From into To.
type SwapRequest struct {
	Side          types.Side
	Asset         string
	Quote         string
	From          string
	To            string
	Amount        float64
	ExpectedPrice float64
	SlippageBps   int
	// MinOutAmount is the smallest acceptable output in numeraire units.
	MinOutAmount float64
}

// SwapResult is a venue's answer to a submission. A rejected swap has
// Success false and a Reason; transport failures are returned as errors.
type SwapResult struct {
	Success       bool
	Receipt       string
	FeeCost       float64
	RealizedPrice float64
	AmountOut     float64
	Reason        string
}

// Health is a point-in-time venue health report.
type Health struct {
	Venue     string        `json:"venue"`
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Message   string        `json:"message,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Venue is the capability set the engine needs from any trading venue.
type Venue interface {
	Name() string
	GetPrices(ctx context.Context, assets []string) ([]types.PriceSample, error)
	SubmitSwap(ctx context.Context, req SwapRequest) (*SwapResult, error)
	Confirm(ctx context.Context, receipt string) (ConfirmStatus, error)
	HealthStatus(ctx context.Context) Health
}
