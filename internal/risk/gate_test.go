package risk

import (
	"testing"
	"time"

	"github.com/mselser95/cycle-arb/internal/arbitrage"
	"github.com/mselser95/cycle-arb/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestGate(t *testing.T, c *clock) *Gate {
	t.Helper()

	state := NewState(&StateConfig{
		HistorySize:           1000,
		EmergencyStopLoss:     2000,
		DefaultMaxPosition:    25000,
		DefaultMaxDailyVolume: 250000,
		Now:                   c.now,
		Logger:                zaptest.NewLogger(t),
	})

	return NewGate(&GateConfig{
		Numeraire:              "USDC",
		TotalCapital:           100000,
		MaxDailyTrades:         100,
		DailyLossLimit:         1000,
		MaxCorrelationExposure: 0.5,
		MaxDrawdown:            0.1,
		MaxKellyFraction:       0.25,
		MinConfidence:          0.5,
		DefaultVolatility:      0.05,
		Volatilities:           map[string]float64{"SOL": 0.8},
		Correlations:           map[string]float64{"SOL:ETH": 0.7},
		Now:                    c.Now,
		Logger:                 zaptest.NewLogger(t),
	}, state)
}

func spreadOpportunity(asset string, size, confidence float64) *arbitrage.Opportunity {
	return &arbitrage.Opportunity{
		ID:   "opp-" + asset,
		Kind: arbitrage.KindSpread,
		Legs: []arbitrage.Leg{
			{Venue: "Orca", Side: types.SideBuy, Asset: asset, Quote: "USDC", From: "USDC", To: asset},
			{Venue: "Raydium", Side: types.SideSell, Asset: asset, Quote: "USDC", From: asset, To: "USDC"},
		},
		ProfitPercent: 0.015,
		TradeSize:     size,
		Confidence:    confidence,
	}
}

func TestAssess_ApprovesCleanSpread(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newTestGate(t, c)

	a := g.Assess(spreadOpportunity("SOL", 5000, 0.85))

	assert.True(t, a.Approved)
	assert.Empty(t, a.Reasons)
	assert.Equal(t, 5000.0, a.AdjustedSize, "no loss history keeps the original size")
	// 5000 * 0.8 * 1.645
	assert.InDelta(t, 6580, a.VaR, 1e-9)
	assert.InDelta(t, 0.0658, a.RiskScore, 1e-9)
}

func TestAssess_EmergencyStopUntilNextDay(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newTestGate(t, c)

	g.State().RecordOutcome(types.TradeOutcome{OpportunityID: "bad", Outcome: types.OutcomeUnbalanced, PnL: -2100, At: c.now})
	require.True(t, g.State().EmergencyStopped())

	for i := 0; i < 3; i++ {
		c.now = c.now.Add(time.Hour)
		a := g.Assess(spreadOpportunity("SOL", 5000, 0.85))
		assert.False(t, a.Approved)
		assert.Contains(t, a.Reasons, ReasonEmergencyStop)
	}

	c.now = time.Date(2026, 3, 11, 0, 0, 1, 0, time.UTC)
	a := g.Assess(spreadOpportunity("SOL", 5000, 0.85))
	assert.NotContains(t, a.Reasons, ReasonEmergencyStop)
	assert.False(t, g.State().EmergencyStopped())
}

func TestAssess_CollectsAllReasons(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newTestGate(t, c)

	g.State().TripEmergencyStop("manual")
	g.State().RecordVolume("SOL", 249000)

	a := g.Assess(spreadOpportunity("SOL", 5000, 0.45))

	assert.False(t, a.Approved)
	assert.Contains(t, a.Reasons, ReasonEmergencyStop)
	assert.Len(t, a.Reasons, 3, "emergency stop, daily volume and confidence")
}

func TestAssess_PositionLimit(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newTestGate(t, c)

	g.State().AddOpenPosition("SOL", 22000)

	a := g.Assess(spreadOpportunity("SOL", 5000, 0.85))
	assert.False(t, a.Approved)
	require.Len(t, a.Reasons, 1)
	assert.Contains(t, a.Reasons[0], "Position limit exceeded for SOL")
}

func TestAssess_CorrelationExposure(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newTestGate(t, c)

	// ETH exposure 80,000 * 0.7 = 56,000 > 50,000
	g.State().RecordVolume("ETH", 80000)

	a := g.Assess(spreadOpportunity("SOL", 5000, 0.85))
	assert.False(t, a.Approved)
	assert.InDelta(t, 56000, a.CorrelationExposure, 1e-9)
	require.Len(t, a.Reasons, 1)
	assert.Contains(t, a.Reasons[0], "Correlation exposure")

	// BTC has no configured correlation with ETH
	b := g.Assess(spreadOpportunity("BTC", 5000, 0.85))
	assert.True(t, b.Approved, "reasons: %v", b.Reasons)
}

func TestAssess_Drawdown(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newTestGate(t, c)

	// Book the drawdown on an earlier day so daily caps are clear today.
	g.State().RecordOutcome(types.TradeOutcome{PnL: 5000})
	for i := 0; i < 11; i++ {
		g.State().RecordOutcome(types.TradeOutcome{PnL: -1000})
	}
	c.now = c.now.Add(24 * time.Hour)

	a := g.Assess(spreadOpportunity("BTC", 5000, 0.85))
	assert.False(t, a.Approved)
	assert.InDelta(t, 11000, a.Drawdown, 1e-9)
	assert.Contains(t, a.Reasons[0], "Max drawdown")
}

func TestAssess_KellyResize(t *testing.T) {
	tests := []struct {
		name         string
		wins, losses int
		win, loss    float64
		size         float64
		wantShrink   bool
		wantApproved bool
	}{
		{"strong-edge-keeps-size", 6, 4, 100, -50, 5000, false, true},
		{"thin-edge-shrinks", 51, 50, 10.2, -10, 10000, true, true},
		{"negative-edge-zero-size-still-approved", 2, 8, 10, -10, 5000, true, true},
		{"too-few-outcomes-keeps-size", 1, 3, 10, -10, 5000, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
			g := newTestGate(t, c)

			for i := 0; i < tt.wins; i++ {
				g.State().RecordOutcome(types.TradeOutcome{PnL: tt.win})
			}
			for i := 0; i < tt.losses; i++ {
				g.State().RecordOutcome(types.TradeOutcome{PnL: tt.loss})
			}
			g.State().ResetEmergencyStop()
			c.now = c.now.Add(24 * time.Hour)

			a := g.Assess(spreadOpportunity("BTC", tt.size, 0.85))

			assert.GreaterOrEqual(t, a.AdjustedSize, 0.0)
			assert.LessOrEqual(t, a.AdjustedSize, tt.size)
			assert.LessOrEqual(t, a.KellyFraction, 0.25)
			assert.Equal(t, tt.wantShrink, a.AdjustedSize < tt.size)
			assert.Equal(t, tt.wantApproved, a.Approved, "reasons: %v", a.Reasons)
		})
	}
}

func TestAssess_LossAfterStartKeepsTrading(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newTestGate(t, c)

	// a leg-1 failure costs one fee
	g.State().RecordOutcome(types.TradeOutcome{OpportunityID: "leg1-failed", Outcome: types.OutcomeFailed, PnL: -3, Fees: 3, At: c.now})

	for day := 0; day < 3; day++ {
		a := g.Assess(spreadOpportunity("SOL", 5000, 0.85))

		assert.True(t, a.Approved, "day %d reasons: %v", day, a.Reasons)
		assert.Equal(t, 5000.0, a.AdjustedSize, "day %d", day)
		assert.Zero(t, a.KellyFraction)
		c.now = c.now.Add(24 * time.Hour)
	}
}

func TestAssess_ReasonsEmptyIffApproved(t *testing.T) {
	sizes := []float64{0, 100, 5000, 30000}
	confidences := []float64{0.2, 0.5, 0.51, 0.9}
	volumes := []float64{0, 100000, 249000}

	for _, size := range sizes {
		for _, conf := range confidences {
			for _, vol := range volumes {
				c := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
				g := newTestGate(t, c)
				g.State().RecordVolume("ETH", vol)

				a := g.Assess(spreadOpportunity("SOL", size, conf))

				if a.Approved != (len(a.Reasons) == 0) {
					t.Fatalf("approved=%v with reasons %v (size=%f conf=%f vol=%f)", a.Approved, a.Reasons, size, conf, vol)
				}
				if a.AdjustedSize < 0 || a.AdjustedSize > size {
					t.Fatalf("adjusted size %f outside [0, %f]", a.AdjustedSize, size)
				}
			}
		}
	}
}
