package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/mselser95/cycle-arb/internal/arbitrage"
	"go.uber.org/zap"
)

// ReasonEmergencyStop is the rejection reason while the emergency stop is set.
const ReasonEmergencyStop = "Emergency stop activated"

// z-score for a one-sided 95% VaR.
const varZ = 1.645

// minKellyOutcomes is the trailing sample size Kelly sizing needs before it
// overrides the scorer's size.
const minKellyOutcomes = 10

// Gate approves, rejects or resizes opportunities against the shared State.
type Gate struct {
	config *GateConfig
	state  *State
	logger *zap.Logger
}

// GateConfig holds risk gate configuration.
type GateConfig struct {
	Numeraire              string
	TotalCapital           float64
	MaxDailyTrades         int
	DailyLossLimit         float64
	MaxCorrelationExposure float64 // fraction of capital
	MaxDrawdown            float64 // fraction of capital
	MaxKellyFraction       float64
	MinConfidence          float64
	DefaultVolatility      float64
	Volatilities           map[string]float64
	Correlations           map[string]float64 // "A:B" keys
	Now                    func() time.Time
	Logger                 *zap.Logger
}

// Assessment is the gate's verdict on one opportunity.
type Assessment struct {
	OpportunityID       string   `json:"opportunity_id"`
	Approved            bool     `json:"approved"`
	Reasons             []string `json:"reasons"`
	OriginalSize        float64  `json:"original_size"`
	AdjustedSize        float64  `json:"adjusted_size"`
	RiskScore           float64  `json:"risk_score"`
	VaR                 float64  `json:"var"`
	CorrelationExposure float64  `json:"correlation_exposure"`
	Drawdown            float64  `json:"drawdown"`
	KellyFraction       float64  `json:"kelly_fraction"`
}

// NewGate creates a risk gate over state.
func NewGate(cfg *GateConfig, state *State) *Gate {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKellyFraction <= 0 {
		cfg.MaxKellyFraction = 0.25
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Gate{
		config: cfg,
		state:  state,
		logger: cfg.Logger,
	}
}

// State returns the shared risk state.
func (g *Gate) State() *State {
	return g.state
}

// Assess runs every check and collects all violations. The daily boundary is
// applied first so a new day clears yesterday's stop before evaluation.
func (g *Gate) Assess(opp *arbitrage.Opportunity) *Assessment {
	g.state.ResetDaily(g.config.Now())
	view := g.state.View()

	a := &Assessment{
		OpportunityID: opp.ID,
		OriginalSize:  opp.TradeSize,
	}
	reject := func(check, reason string) {
		a.Reasons = append(a.Reasons, reason)
		RejectionsTotal.WithLabelValues(check).Inc()
	}

	size := opp.TradeSize
	assets := g.tradedAssets(opp)
	capital := g.config.TotalCapital

	// 1. emergency stop
	if view.EmergencyStop {
		reject("emergency-stop", ReasonEmergencyStop)
	}

	// 2. daily caps
	if g.config.MaxDailyTrades > 0 && view.DailyTrades >= g.config.MaxDailyTrades {
		reject("daily-trades", fmt.Sprintf("Daily trade limit reached: %d/%d", view.DailyTrades, g.config.MaxDailyTrades))
	}
	if g.config.DailyLossLimit > 0 && view.DailyLoss-view.DailyProfit >= g.config.DailyLossLimit {
		reject("daily-loss", fmt.Sprintf("Daily loss limit reached: %.2f >= %.2f",
			view.DailyLoss-view.DailyProfit, g.config.DailyLossLimit))
	}

	// 3. per-asset limits
	for _, asset := range assets {
		limit, ok := view.Limits[asset]
		if !ok {
			limit = g.state.Limit(asset)
		}
		for _, reason := range limit.Check(size) {
			reject("position-limit", reason)
		}
	}

	// 4. correlation exposure
	a.CorrelationExposure = g.correlationExposure(assets, view.Limits)
	corrCap := g.config.MaxCorrelationExposure * capital
	if corrCap > 0 && a.CorrelationExposure > corrCap {
		reject("correlation", fmt.Sprintf("Correlation exposure %.2f exceeds %.2f", a.CorrelationExposure, corrCap))
	}

	// 5. volatility-scaled VaR
	a.VaR = size * g.volatility(assets) * varZ
	varRatio := 0.0
	if capital > 0 {
		varRatio = a.VaR / capital
	}

	// 6. drawdown
	stats := ComputeStats(view.History)
	a.Drawdown = stats.MaxDrawdown
	ddCap := g.config.MaxDrawdown * capital
	if ddCap > 0 && a.Drawdown > ddCap {
		reject("drawdown", fmt.Sprintf("Max drawdown %.2f exceeds %.2f", a.Drawdown, ddCap))
	}

	a.RiskScore = clamp01(varRatio + 0.5*ratio(a.CorrelationExposure, corrCap) + 0.5*ratio(a.Drawdown, ddCap))

	// 7. Kelly resize
	a.KellyFraction, a.AdjustedSize = g.kellySize(stats, size, a.RiskScore)

	if opp.Confidence <= g.config.MinConfidence {
		reject("confidence", fmt.Sprintf("Confidence %.2f at or below gate threshold %.2f", opp.Confidence, g.config.MinConfidence))
	}

	a.Approved = len(a.Reasons) == 0

	RiskScore.Observe(a.RiskScore)
	if a.Approved {
		AssessmentsTotal.WithLabelValues("approved").Inc()
		g.logger.Info("opportunity-approved",
			zap.String("opportunity-id", opp.ID),
			zap.String("path", opp.Path()),
			zap.Float64("original-size", a.OriginalSize),
			zap.Float64("adjusted-size", a.AdjustedSize),
			zap.Float64("risk-score", a.RiskScore),
			zap.Float64("kelly-fraction", a.KellyFraction))
	} else {
		AssessmentsTotal.WithLabelValues("rejected").Inc()
		g.logger.Info("opportunity-rejected",
			zap.String("opportunity-id", opp.ID),
			zap.String("path", opp.Path()),
			zap.Strings("reasons", a.Reasons))
	}

	return a
}

// tradedAssets returns the non-numeraire assets an opportunity touches.
func (g *Gate) tradedAssets(opp *arbitrage.Opportunity) []string {
	var assets []string
	seen := make(map[string]bool)
	for _, leg := range opp.Legs {
		for _, asset := range []string{leg.From, leg.To} {
			if asset == g.config.Numeraire || seen[asset] {
				continue
			}
			seen[asset] = true
			assets = append(assets, asset)
		}
	}
	return assets
}

// correlationExposure sums, over assets outside the trade, their exposure
// weighted by |correlation| with each traded asset, and returns the worst.
func (g *Gate) correlationExposure(assets []string, limits map[string]PositionLimit) float64 {
	traded := make(map[string]bool, len(assets))
	for _, a := range assets {
		traded[a] = true
	}

	worst := 0.0
	for _, asset := range assets {
		sum := 0.0
		for other, l := range limits {
			if traded[other] {
				continue
			}
			sum += l.Exposure() * math.Abs(g.correlation(asset, other))
		}
		worst = math.Max(worst, sum)
	}
	return worst
}

func (g *Gate) correlation(a, b string) float64 {
	if c, ok := g.config.Correlations[a+":"+b]; ok {
		return c
	}
	return g.config.Correlations[b+":"+a]
}

// volatility returns the highest volatility among the traded assets.
func (g *Gate) volatility(assets []string) float64 {
	vol := 0.0
	for _, asset := range assets {
		v, ok := g.config.Volatilities[asset]
		if !ok {
			v = g.config.DefaultVolatility
		}
		vol = math.Max(vol, v)
	}
	if len(assets) == 0 {
		vol = g.config.DefaultVolatility
	}
	return vol
}

// kellySize returns the clamped Kelly fraction and the resulting size, never
// above size. Until minKellyOutcomes trades including a loss are on record
// the original size is kept.
func (g *Gate) kellySize(st Stats, size, riskScore float64) (float64, float64) {
	if st.Losses == 0 || st.AvgLoss == 0 || st.Wins+st.Losses < minKellyOutcomes {
		return 0, size
	}

	f := 0.0
	if st.Wins > 0 {
		p := st.WinRate
		q := 1 - p
		b := st.AvgWin / st.AvgLoss
		f = (p*b - q) / b
	}
	f = math.Max(0, math.Min(g.config.MaxKellyFraction, f))

	adjusted := g.config.TotalCapital * f * (1 - riskScore)
	adjusted = math.Max(0, math.Min(size, adjusted))
	return f, adjusted
}

func ratio(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return v / limit
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return math.Max(0, math.Min(1, v))
}
