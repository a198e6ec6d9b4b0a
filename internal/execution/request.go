package execution

import (
	"github.com/mselser95/cycle-arb/internal/arbitrage"
	"github.com/mselser95/cycle-arb/internal/venue"
)

// Request is an approved opportunity resolved into routable hops.
type Request struct {
	Opportunity *arbitrage.Opportunity
	Size        float64
	Hops        []venue.SwapRequest
	Venues      []string
}

// NewRequest sizes every hop at the approved notional and attaches the
// minimum acceptable output implied by the slippage budget.
func NewRequest(opp *arbitrage.Opportunity, size, slippageBps float64) *Request {
	r := &Request{
		Opportunity: opp,
		Size:        size,
		Hops:        make([]venue.SwapRequest, 0, len(opp.Legs)),
		Venues:      make([]string, 0, len(opp.Legs)),
	}

	minOut := size * (1 - slippageBps/10000)
	for _, leg := range opp.Legs {
		r.Hops = append(r.Hops, venue.SwapRequest{
			Side:          leg.Side,
			Asset:         leg.Asset,
			Quote:         leg.Quote,
			From:          leg.From,
			To:            leg.To,
			Amount:        size,
			ExpectedPrice: leg.Price,
			SlippageBps:   int(slippageBps),
			MinOutAmount:  minOut,
		})
		r.Venues = append(r.Venues, leg.Venue)
	}

	return r
}

// EstimatedProfit is the scorer's profit scaled to the approved size.
func (r *Request) EstimatedProfit() float64 {
	return r.Size * r.Opportunity.ProfitPercent
}
