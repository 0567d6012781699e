package signal

import (
	"math"

	"shiftmind/internal/domain"
)

// Scores are the four component scores, each nominally on a 0-100 scale.
// The momentum score is not clamped and leaves that range for strong moves.
type Scores struct {
	Momentum   float64
	Volatility float64
	Trend      float64
	RSI        float64
}

// ComponentScores converts metrics into component scores.
func ComponentScores(m domain.MarketMetrics) Scores {
	s := Scores{
		Momentum:   (finite(m.Momentum)/20 + 0.5) * 50,
		Volatility: math.Max(0, 100-finite(m.Volatility)*2),
		Trend:      50,
		RSI:        50,
	}

	switch m.Trend {
	case domain.TrendBullish:
		s.Trend = 75
	case domain.TrendBearish:
		s.Trend = 25
	}

	switch {
	case m.RSI > 70:
		s.RSI = 30
	case m.RSI < 30:
		s.RSI = 70
	}
	return s
}

// Confidence is the weighted average of the component scores scaled to
// [0, 1] and rounded to two decimals. Zero total weight yields 0.
func Confidence(m domain.MarketMetrics, w domain.StrategyWeights) float64 {
	total := w.Sum()
	if total == 0 || math.IsNaN(total) {
		return 0
	}
	s := ComponentScores(m)
	weighted := (s.Momentum*w.Momentum +
		s.Volatility*w.Volatility +
		s.Trend*w.Trend +
		s.RSI*w.RSI) / total

	c := weighted / 100
	if math.IsNaN(c) {
		return 0
	}
	c = math.Min(math.Max(c, 0), 1)
	return math.Round(c*100) / 100
}
