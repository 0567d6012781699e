package signal

import (
	"strings"

	"shiftmind/internal/domain"
)

// Profiles maps each strategy to its weight vector.
type Profiles map[domain.StrategyType]domain.StrategyWeights

// DefaultProfiles returns the built-in weight table.
func DefaultProfiles() Profiles {
	return Profiles{
		domain.StrategySafe:       {Momentum: 0.1, Volatility: 0.3, Trend: 0.4, RSI: 0.2},
		domain.StrategyBalanced:   {Momentum: 0.3, Volatility: 0.2, Trend: 0.3, RSI: 0.2},
		domain.StrategyAggressive: {Momentum: 0.5, Volatility: 0.2, Trend: 0.2, RSI: 0.1},
	}
}

// DefaultStablecoins returns the stablecoin symbols in preference order.
func DefaultStablecoins() []string {
	return []string{"USDT", "USDC", "DAI"}
}

func (p Profiles) clone() Profiles {
	out := make(Profiles, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, strings.ToUpper(s))
	}
	return out
}
