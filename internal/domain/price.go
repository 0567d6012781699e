package domain

// PriceHistoryPoint is a single (timestamp, price) sample.
// Histories are ordered by Timestamp ASC.
type PriceHistoryPoint struct {
	Timestamp int64   `json:"timestamp"` // unix milliseconds
	Price     float64 `json:"price"`     // quote currency (USD), >= 0
}

// TokenPriceSnapshot is the latest market view of a token.
// Snapshots are keyed by registry symbol (e.g. "ETH", "USDT").
type TokenPriceSnapshot struct {
	ID                       string  `json:"id"`     // market-data provider id, e.g. "ethereum"
	Symbol                   string  `json:"symbol"` // registry symbol, upper case
	CurrentPrice             float64 `json:"currentPrice"`
	PriceChangePercentage24h float64 `json:"priceChangePercentage24h"`
	PriceChangePercentage7d  float64 `json:"priceChangePercentage7d"`
	PriceChangePercentage30d float64 `json:"priceChangePercentage30d"`
	MarketCap                float64 `json:"marketCap"`
	MarketCapRank            int     `json:"marketCapRank"`
	TotalVolume              float64 `json:"totalVolume"`
	High24h                  float64 `json:"high24h"`
	Low24h                   float64 `json:"low24h"`
	ATH                      float64 `json:"ath"`
	ATL                      float64 `json:"atl"`

	// Stale is set when the snapshot came from an expired cached response
	// because the provider could not be reached.
	Stale bool `json:"stale,omitempty"`
}

// Prices extracts the price column of a history.
func Prices(history []PriceHistoryPoint) []float64 {
	out := make([]float64, len(history))
	for i, p := range history {
		out[i] = p.Price
	}
	return out
}
