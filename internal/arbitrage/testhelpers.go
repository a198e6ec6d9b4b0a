package arbitrage

import (
	"time"

	"github.com/mselser95/cycle-arb/pkg/types"
)

// NewTestSample builds a sample quoted against USDC for tests.
func NewTestSample(asset, venue string, price, liquidity float64, at time.Time) types.PriceSample {
	return types.PriceSample{
		Asset:      asset,
		Quote:      "USDC",
		Venue:      venue,
		Price:      price,
		Liquidity:  liquidity,
		CapturedAt: at,
	}
}

// NewTestCycle builds a closed cycle through nodes with one weight per hop.
// Each hop gets its own synthetic sample so cycle keys stay distinct.
func NewTestCycle(nodes []string, weights []float64, liquidity float64, at time.Time) *Cycle {
	edges := make([]Edge, len(nodes))
	for i := range nodes {
		from, to := nodes[i], nodes[(i+1)%len(nodes)]
		edges[i] = Edge{
			From:   from,
			To:     to,
			Weight: weights[i],
			Side:   types.SideSell,
			Sample: types.PriceSample{
				Asset:      from,
				Quote:      to,
				Venue:      "test",
				Price:      1,
				Liquidity:  liquidity,
				CapturedAt: at,
			},
		}
	}
	return &Cycle{Edges: edges}
}

// NewTestOpportunity returns a scored USDC->SOL->USDC spread: buy on Orca at
// 100, sell on Raydium at 101.5, sized at 5000.
func NewTestOpportunity(at time.Time) *Opportunity {
	opp := newOpportunity(KindSpread, []Leg{
		{
			Venue: "Orca", Side: types.SideBuy, Asset: "SOL", Quote: "USDC",
			From: "USDC", To: "SOL", Price: 100, Rate: 0.01, Liquidity: 1_000_000,
			SampleKey: "SOL/USDC@Orca",
		},
		{
			Venue: "Raydium", Side: types.SideSell, Asset: "SOL", Quote: "USDC",
			From: "SOL", To: "USDC", Price: 101.5, Rate: 101.5, Liquidity: 1_000_000,
			SampleKey: "SOL/USDC@Raydium",
		},
	}, at)
	opp.ProfitPercent = 0.015
	opp.ProfitBPS = 150
	opp.Confidence = 0.85
	opp.TradeSize = 5000
	opp.EstimatedProfit = 75
	opp.MinLiquidity = 1_000_000
	opp.AvgLiquidity = 1_000_000
	return opp
}
