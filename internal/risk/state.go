package risk

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

// State is the shared risk and performance ledger read by the gate and
// updated by the executor.
type State struct {
	mu sync.RWMutex

	history     *History
	limits      map[string]*PositionLimit
	dailyTrades int
	dailyProfit float64
	dailyLoss   float64
	totalPnL    float64
	day         string

	emergencyStop     bool
	emergencyStopLoss float64

	defaultMaxPosition    float64
	defaultMaxDailyVolume float64

	logger *zap.Logger
}

// StateConfig holds risk state configuration.
type StateConfig struct {
	HistorySize           int
	EmergencyStopLoss     float64
	DefaultMaxPosition    float64
	DefaultMaxDailyVolume float64
	// Per-asset [maxPosition, maxDailyVolume] overrides.
	PositionLimits map[string][2]float64
	Now            time.Time
	Logger         *zap.Logger
}

// View is a consistent copy of the state taken under one lock.
type View struct {
	Day           string
	DailyTrades   int
	DailyProfit   float64
	DailyLoss     float64
	TotalPnL      float64
	EmergencyStop bool
	Limits        map[string]PositionLimit
	History       []types.TradeOutcome
}

// Summary is the status-surface representation of the state.
type Summary struct {
	Day           string          `json:"day"`
	DailyTrades   int             `json:"daily_trades"`
	DailyProfit   float64         `json:"daily_profit"`
	DailyLoss     float64         `json:"daily_loss"`
	TotalPnL      float64         `json:"total_pnl"`
	EmergencyStop bool            `json:"emergency_stop"`
	HistorySize   int             `json:"history_size"`
	WinRate       float64         `json:"win_rate"`
	MaxDrawdown   float64         `json:"max_drawdown"`
	Limits        []PositionLimit `json:"position_limits"`
}

// NewState creates an empty risk state for the day containing cfg.Now.
func NewState(cfg *StateConfig) *State {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}

	s := &State{
		history:               NewHistory(cfg.HistorySize),
		limits:                make(map[string]*PositionLimit),
		day:                   dayOf(cfg.Now),
		emergencyStopLoss:     cfg.EmergencyStopLoss,
		defaultMaxPosition:    cfg.DefaultMaxPosition,
		defaultMaxDailyVolume: cfg.DefaultMaxDailyVolume,
		logger:                cfg.Logger,
	}

	for asset, l := range cfg.PositionLimits {
		s.limits[asset] = &PositionLimit{Asset: asset, MaxPosition: l[0], MaxDailyVolume: l[1]}
	}

	return s
}

func dayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// limit returns the limit for asset, creating one from defaults. Caller holds mu.
func (s *State) limit(asset string) *PositionLimit {
	l, ok := s.limits[asset]
	if !ok {
		l = &PositionLimit{
			Asset:          asset,
			MaxPosition:    s.defaultMaxPosition,
			MaxDailyVolume: s.defaultMaxDailyVolume,
		}
		s.limits[asset] = l
	}
	return l
}

// ResetDaily clears daily counters, daily volumes and the emergency stop if
// now falls on a later calendar day (UTC) than the last reset. It reports
// whether a reset happened; repeated calls within a day are no-ops.
func (s *State) ResetDaily(now time.Time) bool {
	day := dayOf(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	if day <= s.day {
		return false
	}

	s.logger.Info("daily-reset",
		zap.String("previous-day", s.day),
		zap.String("day", day),
		zap.Int("trades", s.dailyTrades),
		zap.Float64("profit", s.dailyProfit),
		zap.Float64("loss", s.dailyLoss),
		zap.Bool("emergency-stop-cleared", s.emergencyStop))

	s.day = day
	s.dailyTrades = 0
	s.dailyProfit = 0
	s.dailyLoss = 0
	s.emergencyStop = false
	for _, l := range s.limits {
		l.DailyVolume = 0
	}

	DailyResetsTotal.Inc()
	s.publish()
	return true
}

// ResetEmergencyStop clears the emergency stop manually.
func (s *State) ResetEmergencyStop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emergencyStop {
		s.logger.Warn("emergency-stop-manual-reset",
			zap.Float64("daily-loss", s.dailyLoss),
			zap.Float64("daily-profit", s.dailyProfit))
	}
	s.emergencyStop = false
	s.publish()
}

// TripEmergencyStop sets the emergency stop immediately.
func (s *State) TripEmergencyStop(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trip(reason)
	s.publish()
}

func (s *State) trip(reason string) {
	if s.emergencyStop {
		return
	}
	s.emergencyStop = true
	EmergencyStopsTotal.Inc()
	s.logger.Error("emergency-stop-activated",
		zap.String("reason", reason),
		zap.Float64("daily-loss", s.dailyLoss),
		zap.Float64("daily-profit", s.dailyProfit),
		zap.Float64("threshold", s.emergencyStopLoss))
}

// RecordOutcome books a finished execution into the daily counters and the
// trailing history, tripping the emergency stop when the net daily loss
// reaches the configured threshold.
func (s *State) RecordOutcome(o types.TradeOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dailyTrades++
	s.totalPnL += o.PnL
	switch {
	case o.PnL > 0:
		s.dailyProfit += o.PnL
	case o.PnL < 0:
		s.dailyLoss += -o.PnL
	}
	s.history.Add(o)

	if s.emergencyStopLoss > 0 && s.dailyLoss-s.dailyProfit >= s.emergencyStopLoss {
		s.trip("daily loss threshold crossed")
	}

	s.publish()
}

// RecordVolume adds traded volume for an asset.
func (s *State) RecordVolume(asset string, volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.limit(asset).DailyVolume += math.Abs(volume)
}

// AddOpenPosition adjusts the residual open position for an asset.
func (s *State) AddOpenPosition(asset string, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.limit(asset)
	l.OpenPosition += amount
	s.logger.Warn("open-position-updated",
		zap.String("asset", asset),
		zap.Float64("delta", amount),
		zap.Float64("open-position", l.OpenPosition))
}

// Limit returns the limit for asset, with defaults applied.
func (s *State) Limit(asset string) PositionLimit {
	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.limit(asset)
}

// EmergencyStopped reports whether the emergency stop is active.
func (s *State) EmergencyStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emergencyStop
}

// DailyLoss returns the gross loss booked today.
func (s *State) DailyLoss() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dailyLoss
}

// View copies the state under a single read lock.
func (s *State) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limits := make(map[string]PositionLimit, len(s.limits))
	for asset, l := range s.limits {
		limits[asset] = *l
	}

	return View{
		Day:           s.day,
		DailyTrades:   s.dailyTrades,
		DailyProfit:   s.dailyProfit,
		DailyLoss:     s.dailyLoss,
		TotalPnL:      s.totalPnL,
		EmergencyStop: s.emergencyStop,
		Limits:        limits,
		History:       s.history.Items(),
	}
}

// Summary returns the status-surface view.
func (s *State) Summary() Summary {
	v := s.View()

	limits := make([]PositionLimit, 0, len(v.Limits))
	for _, l := range v.Limits {
		limits = append(limits, l)
	}
	sort.Slice(limits, func(i, j int) bool { return limits[i].Asset < limits[j].Asset })

	stats := ComputeStats(v.History)

	return Summary{
		Day:           v.Day,
		DailyTrades:   v.DailyTrades,
		DailyProfit:   v.DailyProfit,
		DailyLoss:     v.DailyLoss,
		TotalPnL:      v.TotalPnL,
		EmergencyStop: v.EmergencyStop,
		HistorySize:   len(v.History),
		WinRate:       stats.WinRate,
		MaxDrawdown:   stats.MaxDrawdown,
		Limits:        limits,
	}
}

// publish updates gauges. Caller holds mu.
func (s *State) publish() {
	DailyTrades.Set(float64(s.dailyTrades))
	DailyPnL.Set(s.dailyProfit - s.dailyLoss)
	if s.emergencyStop {
		EmergencyStopActive.Set(1)
	} else {
		EmergencyStopActive.Set(0)
	}
}

// Stats summarises trailing trade history.
type Stats struct {
	Wins        int
	Losses      int
	WinRate     float64
	AvgWin      float64
	AvgLoss     float64 // magnitude
	MaxDrawdown float64
}

// ComputeStats derives win/loss statistics and the peak-to-trough drawdown of
// cumulative P&L over history (oldest first).
func ComputeStats(history []types.TradeOutcome) Stats {
	var st Stats
	var sumWin, sumLoss, cum, peak float64

	for _, o := range history {
		switch {
		case o.PnL > 0:
			st.Wins++
			sumWin += o.PnL
		case o.PnL < 0:
			st.Losses++
			sumLoss += -o.PnL
		}

		cum += o.PnL
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > st.MaxDrawdown {
			st.MaxDrawdown = dd
		}
	}

	if n := st.Wins + st.Losses; n > 0 {
		st.WinRate = float64(st.Wins) / float64(n)
	}
	if st.Wins > 0 {
		st.AvgWin = sumWin / float64(st.Wins)
	}
	if st.Losses > 0 {
		st.AvgLoss = sumLoss / float64(st.Losses)
	}
	return st
}
