package signal

import (
	"math"
	"sort"

	"shiftmind/internal/domain"
)

// PortfolioRisk returns the value-weighted absolute 24h price change of
// holdings, scaled down by 100 and capped at 100. Holdings without a price
// are ignored; an empty or worthless portfolio has risk 0.
func PortfolioRisk(holdings map[string]float64, prices map[string]domain.TokenPriceSnapshot) float64 {
	symbols := make([]string, 0, len(holdings))
	for s := range holdings {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var totalValue, totalRisk float64
	for _, sym := range symbols {
		price, ok := prices[sym]
		if !ok {
			continue
		}
		value := holdings[sym] * price.CurrentPrice
		volatility := math.Abs(finite(price.PriceChangePercentage24h))
		totalValue += value
		totalRisk += volatility * (value / 100)
	}

	if totalValue == 0 {
		return 0
	}
	return math.Min(totalRisk/totalValue, 100)
}
