package risk

import (
	"testing"
	"time"

	"github.com/mselser95/cycle-arb/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Add(types.TradeOutcome{OpportunityID: string(rune('a' + i - 1)), PnL: float64(i)})
	}

	require.Equal(t, 3, h.Len())
	require.Equal(t, 3, h.Cap())

	items := h.Items()
	assert.Equal(t, []float64{3, 4, 5}, []float64{items[0].PnL, items[1].PnL, items[2].PnL})
}

func TestHistory_PartiallyFilled(t *testing.T) {
	h := NewHistory(1000)
	h.Add(types.TradeOutcome{PnL: 1})
	h.Add(types.TradeOutcome{PnL: 2})

	items := h.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 1.0, items[0].PnL)
	assert.Equal(t, 2.0, items[1].PnL)
}

func TestState_ResetDailyIdempotent(t *testing.T) {
	day1 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s := NewState(&StateConfig{
		EmergencyStopLoss: 100,
		Now:               day1,
		Logger:            zaptest.NewLogger(t),
	})

	s.RecordOutcome(types.TradeOutcome{PnL: -150, At: day1})
	s.RecordVolume("SOL", 500)
	require.True(t, s.EmergencyStopped())

	assert.False(t, s.ResetDaily(day1.Add(10*time.Hour)), "same day must not reset")
	assert.True(t, s.EmergencyStopped())

	day2 := day1.Add(24 * time.Hour)
	assert.True(t, s.ResetDaily(day2))
	first := s.View()

	assert.False(t, s.ResetDaily(day2.Add(time.Hour)))
	second := s.View()

	assert.Equal(t, first, second)
	assert.Equal(t, 0, second.DailyTrades)
	assert.Equal(t, 0.0, second.DailyLoss)
	assert.Equal(t, 0.0, second.Limits["SOL"].DailyVolume)
	assert.False(t, second.EmergencyStop)
	assert.Len(t, second.History, 1, "history survives the daily reset")
	assert.Equal(t, -150.0, second.TotalPnL)
}

func TestState_EmergencyStopUsesNetLoss(t *testing.T) {
	s := NewState(&StateConfig{EmergencyStopLoss: 1000, Logger: zaptest.NewLogger(t)})

	s.RecordOutcome(types.TradeOutcome{PnL: 400})
	s.RecordOutcome(types.TradeOutcome{PnL: -1200})
	assert.False(t, s.EmergencyStopped(), "net loss 800 is below threshold")

	s.RecordOutcome(types.TradeOutcome{PnL: -200})
	assert.True(t, s.EmergencyStopped())

	s.ResetEmergencyStop()
	assert.False(t, s.EmergencyStopped())
}

func TestState_Limits(t *testing.T) {
	s := NewState(&StateConfig{
		DefaultMaxPosition:    100,
		DefaultMaxDailyVolume: 1000,
		PositionLimits:        map[string][2]float64{"SOL": {50, 500}},
	})

	sol := s.Limit("SOL")
	assert.Equal(t, 50.0, sol.MaxPosition)
	assert.Equal(t, 500.0, sol.MaxDailyVolume)

	eth := s.Limit("ETH")
	assert.Equal(t, 100.0, eth.MaxPosition)

	s.AddOpenPosition("ETH", 30)
	s.RecordVolume("ETH", -200)
	eth = s.Limit("ETH")
	assert.Equal(t, 30.0, eth.OpenPosition)
	assert.Equal(t, 200.0, eth.DailyVolume)
	assert.Equal(t, 230.0, eth.Exposure())

	assert.Len(t, eth.Check(80), 1)
	assert.Empty(t, eth.Check(70))
	assert.Len(t, eth.Check(900), 2)
}

func TestComputeStats(t *testing.T) {
	st := ComputeStats([]types.TradeOutcome{
		{PnL: 100}, {PnL: 50}, {PnL: -120}, {PnL: -60}, {PnL: 200}, {PnL: 0},
	})

	assert.Equal(t, 3, st.Wins)
	assert.Equal(t, 2, st.Losses)
	assert.InDelta(t, 0.6, st.WinRate, 1e-12)
	assert.InDelta(t, 350.0/3, st.AvgWin, 1e-9)
	assert.InDelta(t, 90, st.AvgLoss, 1e-12)
	// peak 150, trough -30
	assert.InDelta(t, 180, st.MaxDrawdown, 1e-12)
}

func TestState_Summary(t *testing.T) {
	s := NewState(&StateConfig{DefaultMaxPosition: 10})
	s.RecordVolume("SOL", 5)
	s.RecordVolume("BTC", 5)
	s.RecordOutcome(types.TradeOutcome{PnL: 10})

	sum := s.Summary()
	assert.Equal(t, 1, sum.DailyTrades)
	assert.Equal(t, 1, sum.HistorySize)
	assert.Equal(t, 1.0, sum.WinRate)
	require.Len(t, sum.Limits, 2)
	assert.Equal(t, "BTC", sum.Limits[0].Asset)
}
