package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shiftmind/internal/domain"
)

func TestComponentScores(t *testing.T) {
	s := ComponentScores(domain.MarketMetrics{Momentum: 0, Volatility: 10, Trend: domain.TrendBullish, RSI: 75})
	assert.Equal(t, 25.0, s.Momentum)
	assert.Equal(t, 80.0, s.Volatility)
	assert.Equal(t, 75.0, s.Trend)
	assert.Equal(t, 30.0, s.RSI)

	s = ComponentScores(domain.MarketMetrics{Momentum: 10, Volatility: 60, Trend: domain.TrendBearish, RSI: 20})
	assert.Equal(t, 50.0, s.Momentum)
	assert.Equal(t, 0.0, s.Volatility)
	assert.Equal(t, 25.0, s.Trend)
	assert.Equal(t, 70.0, s.RSI)
}

func TestConfidence_Neutral(t *testing.T) {
	// neutral metrics: momentum 25, volatility 100, trend 50, rsi 50
	got := Confidence(domain.NeutralMetrics(), DefaultProfiles()[domain.StrategyBalanced])
	want := (25*0.3 + 100*0.2 + 50*0.3 + 50*0.2) / 1.0 / 100
	assert.InDelta(t, want, got, 0.01)
}

func TestConfidence_AlwaysInRange(t *testing.T) {
	trends := []domain.Trend{domain.TrendBullish, domain.TrendBearish, domain.TrendNeutral}
	for strategy, weights := range DefaultProfiles() {
		for _, vol := range []float64{0, 25, 100} {
			for _, rsi := range []float64{0, 29, 50, 71, 100} {
				for _, momentum := range []float64{-1e6, -100, 0, 100, 1e6} {
					for _, trend := range trends {
						m := domain.MarketMetrics{Volatility: vol, RSI: rsi, Momentum: momentum, Trend: trend}
						c := Confidence(m, weights)
						assert.GreaterOrEqual(t, c, 0.0, "%s %+v", strategy, m)
						assert.LessOrEqual(t, c, 1.0, "%s %+v", strategy, m)
					}
				}
			}
		}
	}
}

func TestConfidence_TwoDecimals(t *testing.T) {
	c := Confidence(domain.MarketMetrics{Momentum: 1.2345, Volatility: 7.77, Trend: domain.TrendNeutral, RSI: 50},
		DefaultProfiles()[domain.StrategyAggressive])
	assert.InDelta(t, c, float64(int(c*100+0.5))/100, 1e-12)
}

func TestConfidence_ZeroWeights(t *testing.T) {
	assert.Equal(t, 0.0, Confidence(domain.NeutralMetrics(), domain.StrategyWeights{}))
}
