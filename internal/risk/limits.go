package risk

import (
	"fmt"
	"math"
)

// PositionLimit caps the open position and daily traded volume of one asset.
// Sizes are in numeraire units.
type PositionLimit struct {
	Asset          string  `json:"asset"`
	MaxPosition    float64 `json:"max_position"`
	MaxDailyVolume float64 `json:"max_daily_volume"`
	OpenPosition   float64 `json:"open_position"`
	DailyVolume    float64 `json:"daily_volume"`
}

// Check returns the violations a trade of size would cause.
func (l PositionLimit) Check(size float64) []string {
	var reasons []string
	if l.MaxPosition > 0 && math.Abs(l.OpenPosition)+size > l.MaxPosition {
		reasons = append(reasons, fmt.Sprintf("Position limit exceeded for %s: %.2f open + %.2f > %.2f",
			l.Asset, math.Abs(l.OpenPosition), size, l.MaxPosition))
	}
	if l.MaxDailyVolume > 0 && l.DailyVolume+size > l.MaxDailyVolume {
		reasons = append(reasons, fmt.Sprintf("Daily volume limit exceeded for %s: %.2f traded + %.2f > %.2f",
			l.Asset, l.DailyVolume, size, l.MaxDailyVolume))
	}
	return reasons
}

// Exposure is the capital tied up in the asset today.
func (l PositionLimit) Exposure() float64 {
	return math.Abs(l.OpenPosition) + l.DailyVolume
}
