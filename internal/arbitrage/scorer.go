package arbitrage

import (
	"math"
	"sort"
	"time"

	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

// Scorer turns raw cycles into sized, confidence-weighted opportunities.
type Scorer struct {
	config *ScorerConfig
	logger *zap.Logger
}

// ScorerConfig holds scorer configuration.
type ScorerConfig struct {
	MaxTradeSize      float64
	LiquidityFraction float64
	DefaultLiquidity  float64
	MinProfitPercent  float64
	MinConfidence     float64
	MaxSampleAge      time.Duration
	Logger            *zap.Logger
}

// NewScorer creates a new scorer.
func NewScorer(cfg *ScorerConfig) *Scorer {
	if cfg.LiquidityFraction <= 0 {
		cfg.LiquidityFraction = 0.005
	}
	if cfg.DefaultLiquidity <= 0 {
		cfg.DefaultLiquidity = 10000
	}
	if cfg.MaxSampleAge <= 0 {
		cfg.MaxSampleAge = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Scorer{
		config: cfg,
		logger: cfg.Logger,
	}
}

// Score sizes a detected cycle. Two-leg cycles over the same pair on
// different venues are scored as spreads.
func (s *Scorer) Score(c *Cycle, now time.Time) *Opportunity {
	if bid, ask, ok := spreadLegs(c); ok {
		return s.ScoreSpread(bid, ask, now)
	}

	legs := make([]Leg, 0, c.Len())
	samples := make([]types.PriceSample, 0, c.Len())
	for _, e := range c.Edges {
		legs = append(legs, legFromEdge(e))
		samples = append(samples, e.Sample)
	}

	opp := newOpportunity(KindCycle, legs, now)
	s.fill(opp, c.ProfitPercent(), samples, now)
	return opp
}

// ScoreSpread scores buying on the ask venue and selling on the bid venue.
func (s *Scorer) ScoreSpread(bid, ask types.PriceSample, now time.Time) *Opportunity {
	buy := Edge{
		From:   ask.Quote,
		To:     ask.Asset,
		Rate:   1 / ask.Price,
		Weight: -math.Log(1 / ask.Price),
		Side:   types.SideBuy,
		Sample: ask,
	}
	sell := Edge{
		From:   bid.Asset,
		To:     bid.Quote,
		Rate:   bid.Price,
		Weight: -math.Log(bid.Price),
		Side:   types.SideSell,
		Sample: bid,
	}

	opp := newOpportunity(KindSpread, []Leg{legFromEdge(buy), legFromEdge(sell)}, now)
	s.fill(opp, bid.Price/ask.Price-1, []types.PriceSample{ask, bid}, now)
	return opp
}

func (s *Scorer) fill(opp *Opportunity, profit float64, samples []types.PriceSample, now time.Time) {
	minLiq := math.Inf(1)
	sumLiq := 0.0
	var maxAge time.Duration

	for _, sample := range samples {
		liq := sample.Liquidity
		if liq <= 0 {
			liq = s.config.DefaultLiquidity
		}
		minLiq = math.Min(minLiq, liq)
		sumLiq += liq
		if age := sample.Age(now); age > maxAge {
			maxAge = age
		}
	}
	avgLiq := sumLiq / float64(len(samples))

	opp.ProfitPercent = profit
	opp.ProfitBPS = int(math.Round(profit * 10000))
	opp.MinLiquidity = minLiq
	opp.AvgLiquidity = avgLiq
	opp.MaxSampleAge = maxAge
	opp.TradeSize = math.Min(s.config.MaxTradeSize, minLiq*s.config.LiquidityFraction)
	opp.EstimatedProfit = opp.TradeSize * profit
	opp.Confidence = Confidence(len(samples), profit, avgLiq, maxAge, s.config.MaxSampleAge)
}

// Confidence combines leg count, profit, liquidity and staleness into [0, 1].
func Confidence(legs int, profit, avgLiquidity float64, age, maxAge time.Duration) float64 {
	base := 0.5 - 0.1*float64(legs-2)
	if base < 0.3 {
		base = 0.3
	}
	if legs < 2 {
		base = 0.5
	}

	conf := base
	conf += math.Min(profit*10, 0.2)
	conf += math.Min(avgLiquidity/1_000_000*0.2, 0.2)
	if maxAge > 0 {
		conf -= math.Min(float64(age)/float64(maxAge)*0.3, 0.3)
	}

	if math.IsNaN(conf) {
		return 0
	}
	return math.Max(0, math.Min(1, conf))
}

// Accept reports whether an opportunity clears the profit and confidence
// floors, with a rejection reason label otherwise.
func (s *Scorer) Accept(opp *Opportunity) (bool, string) {
	if math.IsNaN(opp.ProfitPercent) || opp.ProfitPercent < s.config.MinProfitPercent {
		return false, "profit-below-threshold"
	}
	if opp.Confidence < s.config.MinConfidence {
		return false, "confidence-below-threshold"
	}
	if opp.TradeSize <= 0 {
		return false, "zero-size"
	}
	return true, ""
}

// Filter keeps accepted opportunities and records rejections.
func (s *Scorer) Filter(opps []*Opportunity) []*Opportunity {
	kept := make([]*Opportunity, 0, len(opps))
	for _, opp := range opps {
		ok, reason := s.Accept(opp)
		if !ok {
			OpportunitiesRejectedTotal.WithLabelValues(reason).Inc()
			s.logger.Debug("opportunity-rejected",
				zap.String("opportunity-id", opp.ID),
				zap.String("path", opp.Path()),
				zap.String("reason", reason),
				zap.Float64("profit-pct", opp.ProfitPercent*100),
				zap.Float64("confidence", opp.Confidence))
			continue
		}

		OpportunitiesDetectedTotal.WithLabelValues(string(opp.Kind)).Inc()
		OpportunityProfitBPS.Observe(float64(opp.ProfitBPS))
		OpportunitySize.Observe(opp.TradeSize)
		kept = append(kept, opp)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].ProfitPercent > kept[j].ProfitPercent
	})
	return kept
}

// FindSpreads pairs the highest bid with the lowest ask for every asset/quote
// pair quoted on at least two venues.
func (s *Scorer) FindSpreads(snap types.Snapshot, now time.Time) []*Opportunity {
	byPair := make(map[string][]types.PriceSample)
	for _, sample := range snap.Sorted() {
		if sample.Validate() != nil {
			continue
		}
		pair := sample.Asset + "/" + sample.Quote
		byPair[pair] = append(byPair[pair], sample)
	}

	pairs := make([]string, 0, len(byPair))
	for pair := range byPair {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	var opps []*Opportunity
	for _, pair := range pairs {
		samples := byPair[pair]
		if len(samples) < 2 {
			continue
		}

		bid, ask := samples[0], samples[0]
		for _, sample := range samples[1:] {
			if sample.Price > bid.Price {
				bid = sample
			}
			if sample.Price < ask.Price {
				ask = sample
			}
		}
		if bid.Venue == ask.Venue || bid.Price <= ask.Price {
			continue
		}

		opps = append(opps, s.ScoreSpread(bid, ask, now))
	}

	return opps
}

// spreadLegs recognises a two-leg cycle that buys an asset on one venue and
// sells the same pair on another.
func spreadLegs(c *Cycle) (bid, ask types.PriceSample, ok bool) {
	if c.Len() != 2 {
		return bid, ask, false
	}
	a, b := c.Edges[0], c.Edges[1]
	if a.Sample.Asset != b.Sample.Asset || a.Sample.Quote != b.Sample.Quote {
		return bid, ask, false
	}
	if a.Sample.Venue == b.Sample.Venue {
		return bid, ask, false
	}

	switch {
	case a.Side == types.SideBuy && b.Side == types.SideSell:
		return b.Sample, a.Sample, true
	case a.Side == types.SideSell && b.Side == types.SideBuy:
		return a.Sample, b.Sample, true
	}
	return bid, ask, false
}
