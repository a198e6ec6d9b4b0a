package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mselser95/cycle-arb/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// tickServer upgrades every request, records the subscribe message and then
// writes the frames it is given.
type tickServer struct {
	t        *testing.T
	srv      *httptest.Server
	mu       sync.Mutex
	subs     []subscribeMessage
	frames   []string
	conns    int
	dropOnce bool
}

func newTickServer(t *testing.T, dropFirst bool, frames ...string) *tickServer {
	ts := &tickServer{t: t, frames: frames, dropOnce: dropFirst}
	upgrader := websocket.Upgrader{}

	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		var sub subscribeMessage
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}

		ts.mu.Lock()
		ts.subs = append(ts.subs, sub)
		ts.conns++
		drop := ts.dropOnce && ts.conns == 1
		ts.mu.Unlock()

		if drop {
			return
		}

		for _, f := range ts.frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}

		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *tickServer) url() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *tickServer) connections() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.conns
}

func newTestConnector(t *testing.T, url string, out chan types.PriceSample) *WSConnector {
	t.Helper()
	w, err := NewWSConnector(WSConfig{
		URL:                   url,
		Assets:                []string{"SOL", "ETH"},
		DialTimeout:           time.Second,
		PingInterval:          time.Second,
		ReconnectInitialDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:     50 * time.Millisecond,
		ReconnectBackoffMult:  2,
		Out:                   out,
		Logger:                zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return w
}

func receive(t *testing.T, out <-chan types.PriceSample) types.PriceSample {
	t.Helper()
	select {
	case s := <-out:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sample")
		return types.PriceSample{}
	}
}

func TestWSConnector_StreamsTicks(t *testing.T) {
	ts := newTickServer(t, false,
		`{"type":"subscribed"}`,
		`[]`,
		`[{"asset":"sol","venue":"Orca","price":100.5,"liquidity":250000,"ts":1773144000000},`+
			`{"asset":"ETH","quote":"USDC","venue":"Phoenix","price":2000}]`,
		`{"asset":"SOL","venue":"Raydium","price":101}`,
	)
	out := make(chan types.PriceSample, 8)

	w := newTestConnector(t, ts.url(), out)
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	first := receive(t, out)
	assert.Equal(t, "SOL", first.Asset)
	assert.Equal(t, "Orca", first.Venue)
	assert.InDelta(t, 100.5, first.Price, 1e-12)
	assert.InDelta(t, 250000.0, first.Liquidity, 1e-9)
	assert.Equal(t, time.UnixMilli(1773144000000), first.CapturedAt)

	second := receive(t, out)
	assert.Equal(t, "Phoenix", second.Venue)
	assert.Equal(t, "USDC", second.Quote)
	assert.False(t, second.CapturedAt.IsZero())

	third := receive(t, out)
	assert.Equal(t, "Raydium", third.Venue)

	ts.mu.Lock()
	require.Len(t, ts.subs, 1)
	assert.Equal(t, "subscribe", ts.subs[0].Type)
	assert.Equal(t, []string{"SOL", "ETH"}, ts.subs[0].Assets)
	ts.mu.Unlock()
}

func TestWSConnector_ReconnectsAndResubscribes(t *testing.T) {
	ts := newTickServer(t, true, `[{"asset":"SOL","venue":"Orca","price":100}]`)
	out := make(chan types.PriceSample, 8)

	w := newTestConnector(t, ts.url(), out)
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	s := receive(t, out)
	assert.Equal(t, "Orca", s.Venue)
	assert.GreaterOrEqual(t, ts.connections(), 2)
	assert.True(t, w.IsConnected())
}

func TestWSConnector_DropsWhenChannelFull(t *testing.T) {
	ts := newTickServer(t, false,
		`[{"asset":"SOL","venue":"Orca","price":100},{"asset":"SOL","venue":"Raydium","price":101}]`,
		`{"asset":"ETH","venue":"Orca","price":2000}`,
	)
	out := make(chan types.PriceSample, 1)

	w := newTestConnector(t, ts.url(), out)
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	s := receive(t, out)
	assert.Equal(t, "Orca", s.Venue)
}

func TestWSConnector_InitialDialFails(t *testing.T) {
	out := make(chan types.PriceSample, 1)
	w := newTestConnector(t, "ws://127.0.0.1:1/ticks", out)

	err := w.Start(context.Background())
	assert.Error(t, err)
}

func TestNewWSConnector_Validation(t *testing.T) {
	_, err := NewWSConnector(WSConfig{Out: make(chan types.PriceSample)})
	assert.Error(t, err)

	_, err = NewWSConnector(WSConfig{URL: "ws://localhost"})
	assert.Error(t, err)
}

func TestReconnector_BackoffCapsAndResets(t *testing.T) {
	r := NewReconnector(ReconnectConfig{
		InitialDelay:      time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		BackoffMultiplier: 2,
	}, zaptest.NewLogger(t))

	attempts := 0
	err := r.Reconnect(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 4 {
			return assert.AnError
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, time.Millisecond, r.Current())

	for i := 0; i < 5; i++ {
		r.grow()
	}
	assert.Equal(t, 4*time.Millisecond, r.Current())
}

func TestReconnector_CancelledContext(t *testing.T) {
	r := NewReconnector(ReconnectConfig{InitialDelay: time.Hour}, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Reconnect(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
