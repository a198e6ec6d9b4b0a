package venue

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mselser95/cycle-arb/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testSecret = base64.URLEncoding.EncodeToString([]byte("gateway-secret"))

func newGateway(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/prices", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SOL,ETH", r.URL.Query().Get("assets"))
		_, _ = w.Write([]byte(`[{"asset":"SOL","quote":"USDC","price":100.5,"liquidity":250000,"timestamp":1767000000000},
			{"asset":"ETH","quote":"USDC","price":2010,"liquidity":0}]`))
	})
	mux.HandleFunc("/swap", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		want := Sign([]byte("gateway-secret"), r.Header.Get("X-TIMESTAMP"), r.Method, "/swap", body)
		if r.Header.Get("X-SIGNATURE") != want || r.Header.Get("X-API-KEY") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("bad signature"))
			return
		}

		var req swapRequestJSON
		assert.NoError(t, json.Unmarshal(body, &req))
		if req.Amount != "1000000000" {
			_, _ = w.Write([]byte(`{"success":false,"reason":"unexpected amount"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"receipt":"0xabc","fee":3,"realized_price":100.6,"amount_out":996.2}`))
	})
	mux.HandleFunc("/swap/0xabc", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"confirmed"}`))
	})
	mux.HandleFunc("/swap/0xpending", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	return httptest.NewServer(mux)
}

func newTestHTTPVenue(t *testing.T, url string) *HTTPVenue {
	t.Helper()
	v, err := NewHTTPVenue(&HTTPVenueConfig{
		Name:    "Phoenix",
		BaseURL: url + "/",
		APIKey:  "key",
		Secret:  testSecret,
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return v
}

func TestHTTPVenue_GetPrices(t *testing.T) {
	srv := newGateway(t)
	defer srv.Close()
	v := newTestHTTPVenue(t, srv.URL)

	samples, err := v.GetPrices(context.Background(), []string{"SOL", "ETH"})
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, "Phoenix", samples[0].Venue)
	assert.Equal(t, 100.5, samples[0].Price)
	assert.Equal(t, int64(1767000000000), samples[0].CapturedAt.UnixMilli())
	assert.False(t, samples[1].CapturedAt.IsZero())
}

func TestHTTPVenue_SubmitAndConfirm(t *testing.T) {
	srv := newGateway(t)
	defer srv.Close()
	v := newTestHTTPVenue(t, srv.URL)
	ctx := context.Background()

	res, err := v.SubmitSwap(ctx, SwapRequest{Side: types.SideBuy, Asset: "SOL", Quote: "USDC", Amount: 1000, ExpectedPrice: 100.5})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "0xabc", res.Receipt)
	assert.Equal(t, 3.0, res.FeeCost)

	status, err := v.Confirm(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, ConfirmConfirmed, status)

	status, err = v.Confirm(ctx, "0xpending")
	require.NoError(t, err)
	assert.Equal(t, ConfirmPending, status)
}

func TestHTTPVenue_BadSignature(t *testing.T) {
	srv := newGateway(t)
	defer srv.Close()

	v, err := NewHTTPVenue(&HTTPVenueConfig{
		Name:    "Phoenix",
		BaseURL: srv.URL,
		APIKey:  "key",
		Secret:  base64.URLEncoding.EncodeToString([]byte("wrong")),
	})
	require.NoError(t, err)

	_, err = v.SubmitSwap(context.Background(), SwapRequest{Amount: 1000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestHTTPVenue_Health(t *testing.T) {
	srv := newGateway(t)
	defer srv.Close()
	v := newTestHTTPVenue(t, srv.URL)

	h := v.HealthStatus(context.Background())
	assert.False(t, h.Healthy)
	assert.Contains(t, h.Message, "status 503")
}

func TestNewHTTPVenue_Validation(t *testing.T) {
	_, err := NewHTTPVenue(&HTTPVenueConfig{BaseURL: "http://x", Secret: testSecret})
	assert.Error(t, err)

	_, err = NewHTTPVenue(&HTTPVenueConfig{Name: "Orca", Secret: testSecret})
	assert.Error(t, err)

	_, err = NewHTTPVenue(&HTTPVenueConfig{Name: "Orca", BaseURL: "http://x", Secret: "%%%"})
	assert.Error(t, err)
}
