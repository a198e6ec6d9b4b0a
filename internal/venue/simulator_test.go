package venue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mselser95/cycle-arb/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestSimulator(t *testing.T, name string) *ExecutionSimulator {
	t.Helper()
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return NewExecutionSimulator(&SimulatorConfig{
		Name:         name,
		FeeBps:       30,
		ConfirmPolls: 2,
		Liquidity:    1_000_000,
		Prices:       map[string]float64{"SOL": 100, "ETH": 2000},
		Now:          func() time.Time { return at },
		Logger:       zaptest.NewLogger(t),
	})
}

func TestSimulator_CleanFill(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t, "Orca")

	res, err := sim.SubmitSwap(ctx, SwapRequest{
		Side: types.SideBuy, Asset: "SOL", Quote: "USDC", From: "USDC", To: "SOL",
		Amount: 1000, ExpectedPrice: 100,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.InDelta(t, 3.0, res.FeeCost, 1e-12)
	assert.InDelta(t, 997.0, res.AmountOut, 1e-9)
	assert.Len(t, res.Receipt, 66, "0x-prefixed keccak hash")

	for i := 0; i < 2; i++ {
		status, err := sim.Confirm(ctx, res.Receipt)
		require.NoError(t, err)
		assert.Equal(t, ConfirmPending, status)
	}
	status, err := sim.Confirm(ctx, res.Receipt)
	require.NoError(t, err)
	assert.Equal(t, ConfirmConfirmed, status)

	submits, confirms := sim.Calls()
	assert.Equal(t, 1, submits)
	assert.Equal(t, 3, confirms)
}

func TestSimulator_ScriptedOutcomes(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t, "Raydium")
	req := SwapRequest{Side: types.SideSell, Asset: "SOL", Amount: 500, ExpectedPrice: 100}

	sim.Script(
		Outcome{SubmitErr: ErrSimulatedTransport},
		Outcome{Reject: "pool paused"},
		Outcome{Final: ConfirmFailed, PendingPolls: 1},
	)

	_, err := sim.SubmitSwap(ctx, req)
	assert.ErrorIs(t, err, ErrSimulatedTransport)

	res, err := sim.SubmitSwap(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "pool paused", res.Reason)

	res, err = sim.SubmitSwap(ctx, req)
	require.NoError(t, err)
	require.True(t, res.Success)
	status, _ := sim.Confirm(ctx, res.Receipt)
	assert.Equal(t, ConfirmPending, status)
	status, _ = sim.Confirm(ctx, res.Receipt)
	assert.Equal(t, ConfirmFailed, status)

	// script exhausted: clean fill
	res, err = sim.SubmitSwap(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestSimulator_SlippageAndMinOut(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t, "Phoenix")

	sim.Script(Outcome{SlippageBps: 100}, Outcome{SlippageBps: 100})

	res, err := sim.SubmitSwap(ctx, SwapRequest{Side: types.SideSell, Asset: "SOL", Amount: 1000, ExpectedPrice: 100})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.InDelta(t, 99.0, res.RealizedPrice, 1e-9)
	assert.InDelta(t, 997*0.99, res.AmountOut, 1e-9)

	res, err = sim.SubmitSwap(ctx, SwapRequest{
		Side: types.SideSell, Asset: "SOL", Amount: 1000, ExpectedPrice: 100, MinOutAmount: 995,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "slippage exceeded")
}

func TestSimulator_DeterministicReceipts(t *testing.T) {
	ctx := context.Background()
	a := newTestSimulator(t, "Orca")
	b := newTestSimulator(t, "Orca")
	req := SwapRequest{Side: types.SideBuy, Asset: "ETH", Amount: 250, ExpectedPrice: 2000}

	ra, err := a.SubmitSwap(ctx, req)
	require.NoError(t, err)
	rb, err := b.SubmitSwap(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, ra.Receipt, rb.Receipt)

	ra2, err := a.SubmitSwap(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, ra.Receipt, ra2.Receipt)
}

func TestSimulator_UnknownReceipt(t *testing.T) {
	sim := newTestSimulator(t, "Orca")
	_, err := sim.Confirm(context.Background(), "0xdead")
	assert.True(t, errors.Is(err, ErrUnknownReceipt))
}

func TestSimulator_GetPrices(t *testing.T) {
	sim := newTestSimulator(t, "Orca")

	all, err := sim.GetPrices(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ETH", all[0].Asset)
	assert.Equal(t, "USDC", all[0].Quote)
	assert.Equal(t, "Orca", all[0].Venue)

	some, err := sim.GetPrices(context.Background(), []string{"SOL", "BTC"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, 100.0, some[0].Price)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sim.GetPrices(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
