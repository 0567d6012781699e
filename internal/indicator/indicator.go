// Package indicator computes market metrics from a price history.
//
// All functions are pure and never fail: on insufficient data they return
// neutral defaults instead of errors.
package indicator

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"shiftmind/internal/domain"
)

// Parameters of the standard indicators.
const (
	RSIPeriod     = 14
	MACDFast      = 12
	MACDSlow      = 26
	MACDSignal    = 9
	TrendWindow   = 20
	MinHistory    = 14 // below this Analyze returns neutral metrics
	MaxVolatility = 100
	trendBand     = 2.0 // momentum percent needed to call a trend
)

// MACDResult holds the MACD line, its signal line and their difference.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// RSI returns the relative strength index over the last period deltas.
// Fewer than period+1 points yield 50. A window without losses yields 100,
// including a perfectly flat series.
func RSI(history []domain.PriceHistoryPoint, period int) float64 {
	if period <= 0 || len(history) < period+1 {
		return 50
	}

	var gains, losses float64
	for i := len(history) - period; i < len(history); i++ {
		change := history[i].Price - history[i-1].Price
		if change > 0 {
			gains += change
		} else {
			losses += math.Abs(change)
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// EMA returns the running exponential moving average of prices, seeded with
// the first price. An empty series yields 0.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	k := smoothing(period)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = p*k + ema*(1-k)
	}
	return ema
}

func smoothing(period int) float64 {
	return 2 / (float64(period) + 1)
}

// MACD returns EMA12 - EMA26 of the series and its EMA9 signal line.
// The signal is the EMA of the MACD value at every prefix of the series;
// the running EMAs below produce exactly the values a per-prefix
// recomputation would. Fewer than 26 points yield zeros.
func MACD(history []domain.PriceHistoryPoint) MACDResult {
	if len(history) < MACDSlow {
		return MACDResult{}
	}

	kFast := smoothing(MACDFast)
	kSlow := smoothing(MACDSlow)
	kSignal := smoothing(MACDSignal)

	fast := history[0].Price
	slow := history[0].Price
	macd := fast - slow
	signal := macd

	for _, p := range history[1:] {
		fast = p.Price*kFast + fast*(1-kFast)
		slow = p.Price*kSlow + slow*(1-kSlow)
		macd = fast - slow
		signal = macd*kSignal + signal*(1-kSignal)
	}

	return MACDResult{
		MACD:      macd,
		Signal:    signal,
		Histogram: macd - signal,
	}
}

// Volatility returns the population standard deviation of period-over-period
// returns, in percent. Returns from a zero price are skipped.
func Volatility(history []domain.PriceHistoryPoint) float64 {
	if len(history) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		prev := history[i-1].Price
		if prev == 0 {
			continue
		}
		returns = append(returns, (history[i].Price-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * 100
}

// Momentum returns the percent change from the first to the last point of
// the most recent 20-point window.
func Momentum(history []domain.PriceHistoryPoint) float64 {
	window := recent(history)
	if len(window) == 0 || window[0].Price == 0 {
		return 0
	}
	first := window[0].Price
	last := window[len(window)-1].Price
	return (last - first) / first * 100
}

// ClassifyTrend compares the last price with the 20-point average.
func ClassifyTrend(history []domain.PriceHistoryPoint, momentum float64) domain.Trend {
	window := recent(history)
	if len(window) == 0 {
		return domain.TrendNeutral
	}

	var sum float64
	for _, p := range window {
		sum += p.Price
	}
	avg := sum / float64(len(window))
	current := window[len(window)-1].Price

	switch {
	case current > avg && momentum > trendBand:
		return domain.TrendBullish
	case current < avg && momentum < -trendBand:
		return domain.TrendBearish
	default:
		return domain.TrendNeutral
	}
}

// MovingAverage returns the simple moving average for every full window of
// period points, oldest first.
func MovingAverage(history []domain.PriceHistoryPoint, period int) []float64 {
	if period <= 0 || len(history) < period {
		return nil
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(domain.Prices(history))))
}

// Analyze computes the full metric set. Fewer than 14 points yield
// domain.NeutralMetrics.
func Analyze(history []domain.PriceHistoryPoint) domain.MarketMetrics {
	if len(history) < MinHistory {
		return domain.NeutralMetrics()
	}

	momentum := Momentum(history)
	macd := MACD(history)

	macdSignal := -1
	if macd.MACD > macd.Signal {
		macdSignal = 1
	}

	return domain.MarketMetrics{
		Volatility: math.Min(Volatility(history), MaxVolatility),
		Momentum:   momentum,
		Trend:      ClassifyTrend(history, momentum),
		RSI:        RSI(history, RSIPeriod),
		MACDSignal: macdSignal,
	}
}

func recent(history []domain.PriceHistoryPoint) []domain.PriceHistoryPoint {
	if len(history) > TrendWindow {
		return history[len(history)-TrendWindow:]
	}
	return history
}
