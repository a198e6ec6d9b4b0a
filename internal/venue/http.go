package venue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

// HTTPVenue talks to a venue gateway over a signed REST API.
//
// Mutating requests carry an HMAC-SHA256 signature over
// timestamp + method + path + body, keyed with the URL-safe base64 secret.
type HTTPVenue struct {
	name       string
	baseURL    string
	apiKey     string
	secret     []byte
	passphrase string
	client     *http.Client
	logger     *zap.Logger
}

// HTTPVenueConfig holds REST venue configuration.
type HTTPVenueConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	Secret     string // URL-safe base64
	Passphrase string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type priceJSON struct {
	Asset     string  `json:"asset"`
	Quote     string  `json:"quote"`
	Price     float64 `json:"price"`
	Liquidity float64 `json:"liquidity"`
	Volume24h float64 `json:"volume_24h"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

type swapRequestJSON struct {
	Side          string  `json:"side"`
	Asset         string  `json:"asset"`
	Quote         string  `json:"quote"`
	From          string  `json:"from"`
	To            string  `json:"to"`
	Amount        string  `json:"amount"`
	ExpectedPrice float64 `json:"expected_price"`
	SlippageBps   int     `json:"slippage_bps"`
	MinOutAmount  string  `json:"min_out_amount"`
}

type swapResponseJSON struct {
	Success       bool    `json:"success"`
	Receipt       string  `json:"receipt"`
	Fee           float64 `json:"fee"`
	RealizedPrice float64 `json:"realized_price"`
	AmountOut     float64 `json:"amount_out"`
	Reason        string  `json:"reason"`
}

type confirmResponseJSON struct {
	Status string `json:"status"`
}

// NewHTTPVenue creates a REST venue client.
func NewHTTPVenue(cfg *HTTPVenueConfig) (*HTTPVenue, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("venue name cannot be empty")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty for venue %s", cfg.Name)
	}

	secret, err := base64.URLEncoding.DecodeString(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &HTTPVenue{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		secret:     secret,
		passphrase: cfg.Passphrase,
		client:     client,
		logger:     cfg.Logger.With(zap.String("venue", cfg.Name)),
	}, nil
}

// Name returns the venue name.
func (v *HTTPVenue) Name() string {
	return v.name
}

// Sign returns the request signature for the given parts.
func Sign(secret []byte, timestamp, method, path string, body []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(timestamp + method + path))
	h.Write(body)
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

func (v *HTTPVenue) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signPath := path
	if i := strings.IndexByte(signPath, '?'); i >= 0 {
		signPath = signPath[:i]
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", v.apiKey)
	req.Header.Set("X-TIMESTAMP", timestamp)
	req.Header.Set("X-PASSPHRASE", v.passphrase)
	req.Header.Set("X-SIGNATURE", Sign(v.secret, timestamp, method, signPath, body))

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// GetPrices fetches the venue's current quotes.
func (v *HTTPVenue) GetPrices(ctx context.Context, assets []string) ([]types.PriceSample, error) {
	path := "/prices"
	if len(assets) > 0 {
		path += "?assets=" + url.QueryEscape(strings.Join(assets, ","))
	}

	var raw []priceJSON
	if err := v.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("get prices from %s: %w", v.name, err)
	}

	samples := make([]types.PriceSample, 0, len(raw))
	for _, p := range raw {
		at := time.Now()
		if p.Timestamp > 0 {
			at = time.UnixMilli(p.Timestamp)
		}
		samples = append(samples, types.PriceSample{
			Asset:      p.Asset,
			Quote:      p.Quote,
			Venue:      v.name,
			Price:      p.Price,
			Liquidity:  p.Liquidity,
			Volume24h:  p.Volume24h,
			CapturedAt: at,
		})
	}
	return samples, nil
}

// SubmitSwap posts a signed swap request.
func (v *HTTPVenue) SubmitSwap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	body, err := json.Marshal(swapRequestJSON{
		Side:          string(req.Side),
		Asset:         req.Asset,
		Quote:         req.Quote,
		From:          req.From,
		To:            req.To,
		Amount:        toRawAmount(req.Amount),
		ExpectedPrice: req.ExpectedPrice,
		SlippageBps:   req.SlippageBps,
		MinOutAmount:  toRawAmount(req.MinOutAmount),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var resp swapResponseJSON
	if err := v.do(ctx, http.MethodPost, "/swap", body, &resp); err != nil {
		return nil, fmt.Errorf("submit swap to %s: %w", v.name, err)
	}

	v.logger.Debug("swap-submitted",
		zap.Bool("success", resp.Success),
		zap.String("receipt", resp.Receipt),
		zap.String("reason", resp.Reason))

	return &SwapResult{
		Success:       resp.Success,
		Receipt:       resp.Receipt,
		FeeCost:       resp.Fee,
		RealizedPrice: resp.RealizedPrice,
		AmountOut:     resp.AmountOut,
		Reason:        resp.Reason,
	}, nil
}

// Confirm polls the settlement status of a receipt.
func (v *HTTPVenue) Confirm(ctx context.Context, receipt string) (ConfirmStatus, error) {
	var resp confirmResponseJSON
	if err := v.do(ctx, http.MethodGet, "/swap/"+url.PathEscape(receipt), nil, &resp); err != nil {
		return ConfirmPending, fmt.Errorf("confirm %s on %s: %w", receipt, v.name, err)
	}

	switch ConfirmStatus(resp.Status) {
	case ConfirmConfirmed:
		return ConfirmConfirmed, nil
	case ConfirmFailed:
		return ConfirmFailed, nil
	default:
		return ConfirmPending, nil
	}
}

// HealthStatus probes the gateway health endpoint.
func (v *HTTPVenue) HealthStatus(ctx context.Context) Health {
	start := time.Now()
	err := v.do(ctx, http.MethodGet, "/health", nil, nil)

	h := Health{Venue: v.name, Healthy: err == nil, Latency: time.Since(start), CheckedAt: time.Now()}
	if err != nil {
		h.Message = err.Error()
	}
	return h
}

// toRawAmount converts a numeraire amount to 6-decimal base units.
func toRawAmount(amount float64) string {
	return strconv.FormatInt(int64(amount*1_000_000), 10)
}
