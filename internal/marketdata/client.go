// Package marketdata reads token prices and price history from the
// CoinGecko public API.
package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"shiftmind/internal/domain"
	"shiftmind/internal/fetch"
)

// DefaultBaseURL is the CoinGecko v3 API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// DefaultCoinIDs maps registry symbols to CoinGecko coin ids.
func DefaultCoinIDs() map[string]string {
	return map[string]string{
		"ETH":   "ethereum",
		"BTC":   "bitcoin",
		"MATIC": "matic-network",
		"USDT":  "tether",
		"USDC":  "usd-coin",
		"DAI":   "dai",
		"SOL":   "solana",
		"XRP":   "ripple",
	}
}

// Client is a CoinGecko market-data client.
type Client struct {
	doer    fetch.Doer
	baseURL string
	ids     map[string]string // SYMBOL -> coin id
	symbols map[string]string // coin id -> SYMBOL
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithCoinIDs replaces the symbol to coin id table.
func WithCoinIDs(ids map[string]string) ClientOption {
	return func(c *Client) {
		c.ids = make(map[string]string, len(ids))
		for sym, id := range ids {
			c.ids[strings.ToUpper(sym)] = id
		}
	}
}

// NewClient creates a market-data client. An empty baseURL uses DefaultBaseURL.
func NewClient(doer fetch.Doer, baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		doer:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	WithCoinIDs(DefaultCoinIDs())(c)
	for _, opt := range opts {
		opt(c)
	}
	c.symbols = make(map[string]string, len(c.ids))
	for sym, id := range c.ids {
		c.symbols[id] = sym
	}
	return c
}

// marketEntry mirrors one element of /coins/markets. Nullable numbers
// are pointers; missing values read as 0.
type marketEntry struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	CurrentPrice             *float64 `json:"current_price"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	Change24hInCurrency      *float64 `json:"price_change_percentage_24h_in_currency"`
	Change7dInCurrency       *float64 `json:"price_change_percentage_7d_in_currency"`
	Change30dInCurrency      *float64 `json:"price_change_percentage_30d_in_currency"`
	MarketCap                *float64 `json:"market_cap"`
	MarketCapRank            *int     `json:"market_cap_rank"`
	TotalVolume              *float64 `json:"total_volume"`
	High24h                  *float64 `json:"high_24h"`
	Low24h                   *float64 `json:"low_24h"`
	ATH                      *float64 `json:"ath"`
	ATL                      *float64 `json:"atl"`
}

type marketChart struct {
	Prices [][2]float64 `json:"prices"`
}

// CoinID returns the CoinGecko id for a registry symbol.
func (c *Client) CoinID(symbol string) (string, bool) {
	id, ok := c.ids[strings.ToUpper(symbol)]
	return id, ok
}

// Snapshots returns the current market snapshot of each symbol, keyed by
// upper-case registry symbol. Symbols without a known coin id are rejected.
// Snapshots served from an expired cache entry have Stale set.
func (c *Client) Snapshots(ctx context.Context, symbols []string) (map[string]domain.TokenPriceSnapshot, error) {
	ids := make([]string, 0, len(symbols))
	for _, s := range symbols {
		id, ok := c.CoinID(s)
		if !ok {
			return nil, &domain.UnsupportedTokenError{Symbol: s}
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return map[string]domain.TokenPriceSnapshot{}, nil
	}
	// stable URL so the response cache key does not depend on caller order
	sort.Strings(ids)

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", strings.Join(ids, ","))
	q.Set("order", "market_cap_desc")
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "24h,7d,30d")

	var entries []marketEntry
	resp, err := fetch.GetJSON(ctx, c.doer, c.baseURL+"/coins/markets?"+q.Encode(), &entries)
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}

	out := make(map[string]domain.TokenPriceSnapshot, len(entries))
	for _, e := range entries {
		sym, ok := c.symbols[e.ID]
		if !ok {
			sym = strings.ToUpper(e.Symbol)
		}
		snap := e.snapshot()
		snap.Stale = resp.Stale
		out[sym] = snap
	}
	return out, nil
}

func (e marketEntry) snapshot() domain.TokenPriceSnapshot {
	change24h := num(e.PriceChangePercentage24h)
	if e.PriceChangePercentage24h == nil {
		change24h = num(e.Change24hInCurrency)
	}
	rank := 0
	if e.MarketCapRank != nil {
		rank = *e.MarketCapRank
	}
	return domain.TokenPriceSnapshot{
		ID:                       e.ID,
		Symbol:                   strings.ToUpper(e.Symbol),
		CurrentPrice:             nonNegative(num(e.CurrentPrice)),
		PriceChangePercentage24h: change24h,
		PriceChangePercentage7d:  num(e.Change7dInCurrency),
		PriceChangePercentage30d: num(e.Change30dInCurrency),
		MarketCap:                num(e.MarketCap),
		MarketCapRank:            rank,
		TotalVolume:              num(e.TotalVolume),
		High24h:                  num(e.High24h),
		Low24h:                   num(e.Low24h),
		ATH:                      num(e.ATH),
		ATL:                      num(e.ATL),
	}
}

// History returns daily prices of symbol over the last days, ascending by
// timestamp. Points with a negative or non-finite price are dropped.
func (c *Client) History(ctx context.Context, symbol string, days int) ([]domain.PriceHistoryPoint, error) {
	id, ok := c.CoinID(symbol)
	if !ok {
		return nil, &domain.UnsupportedTokenError{Symbol: symbol}
	}
	if days <= 0 {
		return nil, &domain.ValidationError{Field: "days", Reason: "must be positive"}
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(days))
	q.Set("interval", "daily")

	var chart marketChart
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?%s", c.baseURL, url.PathEscape(id), q.Encode())
	if _, err := fetch.GetJSON(ctx, c.doer, endpoint, &chart); err != nil {
		return nil, fmt.Errorf("fetch market chart: %w", err)
	}

	points := make([]domain.PriceHistoryPoint, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		price := p[1]
		if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			continue
		}
		points = append(points, domain.PriceHistoryPoint{Timestamp: int64(p[0]), Price: price})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})
	return points, nil
}

// Price returns the current USD price of symbol.
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	id, ok := c.CoinID(symbol)
	if !ok {
		return 0, &domain.UnsupportedTokenError{Symbol: symbol}
	}

	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")

	var resp map[string]map[string]float64
	if _, err := fetch.GetJSON(ctx, c.doer, c.baseURL+"/simple/price?"+q.Encode(), &resp); err != nil {
		return 0, fmt.Errorf("fetch simple price: %w", err)
	}
	return nonNegative(resp[id]["usd"]), nil
}

func num(p *float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0
	}
	return *p
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
