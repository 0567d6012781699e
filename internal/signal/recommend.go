package signal

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"shiftmind/internal/domain"
)

// Recommendation is a rule-based rotation hint computed from 24h price
// changes alone, without history.
type Recommendation struct {
	ShouldSwap bool    `json:"shouldSwap"`
	FromToken  string  `json:"fromToken"`
	ToToken    string  `json:"toToken"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

type mover struct {
	symbol string
	change float64
}

// Recommend evaluates the quick rotation rules of strategy for the holder
// of current.
func (g *Generator) Recommend(prices map[string]domain.TokenPriceSnapshot, strategy domain.StrategyType, current string) Recommendation {
	current = strings.ToUpper(current)
	symbols := sortedSymbols(prices)

	switch strategy {
	case domain.StrategySafe:
		return g.recommendSafe(prices, symbols, current)
	case domain.StrategyAggressive:
		return g.recommendAggressive(prices, symbols, current)
	default:
		return g.recommendStable(prices, symbols, current)
	}
}

func (g *Generator) recommendSafe(prices map[string]domain.TokenPriceSnapshot, symbols []string, current string) Recommendation {
	snap, ok := prices[current]
	if !ok {
		return unavailable(current)
	}

	change := finite(snap.PriceChangePercentage24h)
	if change < -5 {
		if stable := g.availableStablecoin(prices, current); stable != "" {
			return Recommendation{
				ShouldSwap: true,
				FromToken:  current,
				ToToken:    stable,
				Reason:     fmt.Sprintf("%s dropped %.2f%% in 24h. Moving to stablecoin to preserve value.", current, math.Abs(change)),
				Confidence: 0.75,
			}
		}
	}

	if g.IsStablecoin(current) {
		growth := g.movers(prices, symbols, func(sym string, c float64) bool {
			return !g.IsStablecoin(sym) && c > 3
		})
		if len(growth) > 0 && growth[0].change > 5 {
			return Recommendation{
				ShouldSwap: true,
				FromToken:  current,
				ToToken:    growth[0].symbol,
				Reason:     fmt.Sprintf("%s up %.2f%% in 24h. Safe entry point detected.", growth[0].symbol, growth[0].change),
				Confidence: 0.65,
			}
		}
	}

	return hold(current, "Market conditions stable, holding current position.", 0.8)
}

func (g *Generator) recommendAggressive(prices map[string]domain.TokenPriceSnapshot, symbols []string, current string) Recommendation {
	snap, ok := prices[current]
	if !ok {
		return unavailable(current)
	}

	volatile := g.movers(prices, symbols, func(sym string, _ float64) bool {
		return sym != current && !g.IsStablecoin(sym)
	})

	if len(volatile) > 0 && volatile[0].change > 8 {
		top := volatile[0]
		return Recommendation{
			ShouldSwap: true,
			FromToken:  current,
			ToToken:    top.symbol,
			Reason:     fmt.Sprintf("%s surging %.2f%% in 24h. High momentum detected.", top.symbol, top.change),
			Confidence: 0.7,
		}
	}

	if finite(snap.PriceChangePercentage24h) < -3 {
		for _, m := range volatile {
			if m.change > 0 {
				return Recommendation{
					ShouldSwap: true,
					FromToken:  current,
					ToToken:    m.symbol,
					Reason:     fmt.Sprintf("%s declining. Switching to %s with positive momentum.", current, m.symbol),
					Confidence: 0.65,
				}
			}
		}
	}

	return hold(current, "Monitoring for better entry points.", 0.6)
}

func (g *Generator) recommendStable(prices map[string]domain.TokenPriceSnapshot, symbols []string, current string) Recommendation {
	if !g.IsStablecoin(current) {
		snap, ok := prices[current]
		if !ok {
			return unavailable(current)
		}

		change := finite(snap.PriceChangePercentage24h)
		stable := g.availableStablecoin(prices, "")
		switch {
		case change > 10 && stable != "":
			return Recommendation{
				ShouldSwap: true,
				FromToken:  current,
				ToToken:    stable,
				Reason:     fmt.Sprintf("%s up %.2f%%. Locking in profits to stablecoin.", current, change),
				Confidence: 0.85,
			}
		case change < -7 && stable != "":
			return Recommendation{
				ShouldSwap: true,
				FromToken:  current,
				ToToken:    stable,
				Reason:     fmt.Sprintf("%s down %.2f%%. Protecting capital.", current, math.Abs(change)),
				Confidence: 0.9,
			}
		}
	} else {
		growth := g.movers(prices, symbols, func(sym string, c float64) bool {
			return !g.IsStablecoin(sym) && c > 2 && c < 8
		})
		if len(growth) > 0 {
			return Recommendation{
				ShouldSwap: true,
				FromToken:  current,
				ToToken:    growth[0].symbol,
				Reason:     fmt.Sprintf("%s showing steady growth (%.2f%%). Low-risk entry.", growth[0].symbol, growth[0].change),
				Confidence: 0.7,
			}
		}
	}

	return hold(current, "Maintaining stable position.", 0.85)
}

// movers returns the symbols accepted by keep, sorted by 24h change
// descending, ties by symbol.
func (g *Generator) movers(prices map[string]domain.TokenPriceSnapshot, symbols []string, keep func(sym string, change float64) bool) []mover {
	var out []mover
	for _, sym := range symbols {
		c := finite(prices[sym].PriceChangePercentage24h)
		if keep(sym, c) {
			out = append(out, mover{symbol: sym, change: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].change > out[j].change
	})
	return out
}

// availableStablecoin returns the first stablecoin present in prices that is
// not exclude.
func (g *Generator) availableStablecoin(prices map[string]domain.TokenPriceSnapshot, exclude string) string {
	for _, s := range g.stablecoins {
		if _, ok := prices[s]; ok && s != exclude {
			return s
		}
	}
	return ""
}

func sortedSymbols(prices map[string]domain.TokenPriceSnapshot) []string {
	out := make([]string, 0, len(prices))
	for s := range prices {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func hold(token, reason string, confidence float64) Recommendation {
	return Recommendation{FromToken: token, ToToken: token, Reason: reason, Confidence: confidence}
}

func unavailable(token string) Recommendation {
	return hold(token, "Price data unavailable", 0)
}
