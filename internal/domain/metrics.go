package domain

// Trend is the short-term direction classification of a price series.
type Trend string

// Trend values.
const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// MarketMetrics is derived from a price history each analysis cycle.
// It is never persisted.
type MarketMetrics struct {
	Volatility float64 `json:"volatility"` // stdev of period returns, percent, capped at 100
	Momentum   float64 `json:"momentum"`   // signed percent change over the recent window
	Trend      Trend   `json:"trend"`
	RSI        float64 `json:"rsi"`        // [0, 100]
	MACDSignal int     `json:"macdSignal"` // +1 macd above signal line, -1 otherwise, 0 on insufficient data
}

// NeutralMetrics is returned when the history is too short to analyze.
func NeutralMetrics() MarketMetrics {
	return MarketMetrics{
		Volatility: 0,
		Momentum:   0,
		Trend:      TrendNeutral,
		RSI:        50,
		MACDSignal: 0,
	}
}
