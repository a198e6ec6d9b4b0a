package arbitrage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/cycle-arb/pkg/types"
)

// Kind distinguishes multi-hop cycles from plain cross-venue spreads.
type Kind string

const (
	KindCycle  Kind = "cycle"
	KindSpread Kind = "spread"
)

// Leg is one hop of an opportunity: convert From into To on Venue.
type Leg struct {
	Venue     string     `json:"venue"`
	Side      types.Side `json:"side"`
	Asset     string     `json:"asset"`
	Quote     string     `json:"quote"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Price     float64    `json:"price"`
	Rate      float64    `json:"rate"`
	Liquidity float64    `json:"liquidity"`
	SampleKey string     `json:"sample_key"`
}

// Opportunity is a scored arbitrage candidate.
type Opportunity struct {
	ID              string        `json:"id"`
	Kind            Kind          `json:"kind"`
	Legs            []Leg         `json:"legs"`
	DetectedAt      time.Time     `json:"detected_at"`
	ProfitPercent   float64       `json:"profit_percent"`
	ProfitBPS       int           `json:"profit_bps"`
	Confidence      float64       `json:"confidence"`
	TradeSize       float64       `json:"trade_size"`
	EstimatedProfit float64       `json:"estimated_profit"`
	MinLiquidity    float64       `json:"min_liquidity"`
	AvgLiquidity    float64       `json:"avg_liquidity"`
	MaxSampleAge    time.Duration `json:"max_sample_age"`
}

func newOpportunity(kind Kind, legs []Leg, now time.Time) *Opportunity {
	return &Opportunity{
		ID:         uuid.New().String(),
		Kind:       kind,
		Legs:       legs,
		DetectedAt: now,
	}
}

// legFromEdge converts a graph edge into an execution hop.
func legFromEdge(e Edge) Leg {
	return Leg{
		Venue:     e.Sample.Venue,
		Side:      e.Side,
		Asset:     e.Sample.Asset,
		Quote:     e.Sample.Quote,
		From:      e.From,
		To:        e.To,
		Price:     e.Sample.Price,
		Rate:      e.Rate,
		Liquidity: e.Sample.Liquidity,
		SampleKey: e.Sample.Key(),
	}
}

// Key identifies the opportunity by its sorted sample keys, matching Cycle.Key.
func (o *Opportunity) Key() string {
	keys := make([]string, 0, len(o.Legs))
	for _, l := range o.Legs {
		keys = append(keys, l.SampleKey)
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

// Assets returns the distinct base assets touched by the legs.
func (o *Opportunity) Assets() []string {
	seen := make(map[string]bool)
	var assets []string
	for _, l := range o.Legs {
		if !seen[l.Asset] {
			seen[l.Asset] = true
			assets = append(assets, l.Asset)
		}
	}
	return assets
}

// Venues returns the venues in leg order.
func (o *Opportunity) Venues() []string {
	venues := make([]string, 0, len(o.Legs))
	for _, l := range o.Legs {
		venues = append(venues, l.Venue)
	}
	return venues
}

// Path renders the asset route, e.g. USDC->SOL->ETH->USDC.
func (o *Opportunity) Path() string {
	if len(o.Legs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(o.Legs)+1)
	for _, l := range o.Legs {
		parts = append(parts, l.From)
	}
	parts = append(parts, o.Legs[len(o.Legs)-1].To)
	return strings.Join(parts, "->")
}

func (o *Opportunity) String() string {
	return fmt.Sprintf("%s %s via %s profit=%.4f%% size=%.2f conf=%.2f",
		o.Kind, o.Path(), strings.Join(o.Venues(), ","),
		o.ProfitPercent*100, o.TradeSize, o.Confidence)
}
