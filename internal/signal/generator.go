// Package signal turns market metrics into strategy-specific trade signals.
package signal

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"shiftmind/internal/domain"
	"shiftmind/internal/indicator"
)

// Timeframes attached to signals.
const (
	TimeframeShort = "4-24 hours"
	TimeframeLong  = "1-7 days"
)

// Generator produces trade signals. It holds no mutable state and is safe
// for concurrent use.
type Generator struct {
	profiles    Profiles
	stablecoins []string
}

// NewGenerator creates a generator from a weight table and the stablecoin
// symbols used as rotation targets, in preference order. Nil arguments
// fall back to the defaults.
func NewGenerator(profiles Profiles, stablecoins []string) *Generator {
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	if len(stablecoins) == 0 {
		stablecoins = DefaultStablecoins()
	}
	return &Generator{
		profiles:    profiles.clone(),
		stablecoins: normalizeSymbols(stablecoins),
	}
}

// Weights returns the weights of strategy. Unknown strategies use balanced.
func (g *Generator) Weights(strategy domain.StrategyType) domain.StrategyWeights {
	if w, ok := g.profiles[strategy]; ok {
		return w
	}
	return g.profiles[domain.StrategyBalanced]
}

// Stablecoins returns the configured stablecoin symbols.
func (g *Generator) Stablecoins() []string {
	return append([]string(nil), g.stablecoins...)
}

// Generate returns the signal for tokenSymbol.
func (g *Generator) Generate(
	tokenSymbol string,
	current domain.TokenPriceSnapshot,
	history []domain.PriceHistoryPoint,
	strategy domain.StrategyType,
	all map[string]domain.TokenPriceSnapshot,
) domain.AISignal {
	sig, _ := g.GenerateWithMetrics(tokenSymbol, current, history, strategy, all)
	return sig
}

// GenerateWithMetrics is Generate that also returns the metrics it used.
func (g *Generator) GenerateWithMetrics(
	tokenSymbol string,
	current domain.TokenPriceSnapshot,
	history []domain.PriceHistoryPoint,
	strategy domain.StrategyType,
	all map[string]domain.TokenPriceSnapshot,
) (domain.AISignal, domain.MarketMetrics) {
	if !strategy.Valid() {
		strategy = domain.StrategyBalanced
	}
	metrics := indicator.Analyze(history)
	confidence := Confidence(metrics, g.Weights(strategy))

	change := finite(current.PriceChangePercentage24h)

	sig := domain.AISignal{
		Action:     domain.ActionHold,
		FromToken:  tokenSymbol,
		ToToken:    tokenSymbol,
		Confidence: confidence,
		RiskLevel:  domain.RiskMedium,
		Timeframe:  TimeframeLong,
	}

	switch strategy {
	case domain.StrategySafe:
		g.decideSafe(&sig, tokenSymbol, change, metrics)
	case domain.StrategyAggressive:
		sig.Timeframe = TimeframeShort
		g.decideAggressive(&sig, tokenSymbol, change, metrics, all)
	default:
		g.decideBalanced(&sig, tokenSymbol, change, metrics, all)
	}

	return sig, metrics
}

func (g *Generator) decideSafe(sig *domain.AISignal, token string, change float64, m domain.MarketMetrics) {
	switch {
	case change < -5 || (m.Trend == domain.TrendBearish && m.RSI < 35):
		sig.Action = domain.ActionSwap
		sig.ToToken = g.stablecoinFor(token)
		sig.RiskLevel = domain.RiskLow
		sig.ExpectedGain = 0.5
		sig.Reason = fmt.Sprintf("%s showing bearish signals. Moving to stablecoins to protect capital.", token)
	case change > 3 && change < 8 && m.RSI < 70:
		sig.Action = domain.ActionBuy
		sig.RiskLevel = domain.RiskLow
		sig.ExpectedGain = 2
		sig.Reason = fmt.Sprintf("%s showing steady growth with room to run.", token)
	default:
		sig.Reason = "Market conditions stable for conservative strategy."
	}
}

func (g *Generator) decideAggressive(sig *domain.AISignal, token string, change float64, m domain.MarketMetrics, all map[string]domain.TokenPriceSnapshot) {
	switch {
	case change > 8 && m.Trend == domain.TrendBullish && m.RSI < 85:
		sig.Action = domain.ActionBuy
		sig.RiskLevel = domain.RiskHigh
		sig.ExpectedGain = change * 2
		sig.Reason = fmt.Sprintf("%s surging with strong momentum. High opportunity.", token)
	case change < -8 || (m.Trend == domain.TrendBearish && m.RSI > 65):
		sig.Action = domain.ActionSell
		sig.ToToken = g.BestAlternative(all, domain.StrategyAggressive, token)
		sig.RiskLevel = domain.RiskHigh
		sig.ExpectedGain = 3
		sig.Reason = fmt.Sprintf("%s declining rapidly. Rotating to better opportunities.", token)
	case m.Volatility > 60 && m.Momentum > 5:
		sig.Action = domain.ActionSwap
		sig.ToToken = g.BestAlternative(all, domain.StrategyAggressive, token)
		sig.RiskLevel = domain.RiskHigh
		sig.ExpectedGain = math.Abs(m.Momentum) * 1.5
		sig.Reason = "High volatility opportunity detected. Rotating portfolio."
	default:
		sig.Reason = "Monitoring for aggressive trading opportunities."
	}
}

func (g *Generator) decideBalanced(sig *domain.AISignal, token string, change float64, m domain.MarketMetrics, all map[string]domain.TokenPriceSnapshot) {
	switch {
	case change > 5 && m.RSI > 60 && m.RSI < 80:
		sig.Action = domain.ActionBuy
		sig.RiskLevel = domain.RiskMedium
		sig.ExpectedGain = change * 0.8
		sig.Reason = fmt.Sprintf("%s showing steady uptrend. Balanced entry point.", token)
	case change < -3 || m.RSI > 75:
		sig.Action = domain.ActionSwap
		sig.ToToken = g.BestAlternative(all, domain.StrategyBalanced, token)
		sig.RiskLevel = domain.RiskMedium
		sig.ExpectedGain = 1.5
		sig.Reason = "Rebalancing portfolio for balanced risk/reward."
	default:
		sig.Reason = "Balanced market conditions. Maintaining current position."
	}
}

// BestAlternative picks the rotation target for strategy among all,
// excluding the token being rotated out of. Aggressive looks for the top
// gainer above +2%, balanced for the top gainer within (+1%, +10%); the
// first stablecoin is the fallback.
func (g *Generator) BestAlternative(all map[string]domain.TokenPriceSnapshot, strategy domain.StrategyType, exclude string) string {
	var inBand func(change float64) bool
	switch strategy {
	case domain.StrategyAggressive:
		inBand = func(c float64) bool { return c > 2 }
	case domain.StrategyBalanced:
		inBand = func(c float64) bool { return c > 1 && c < 10 }
	default:
		return g.stablecoinFor(exclude)
	}

	type candidate struct {
		symbol string
		change float64
	}
	candidates := make([]candidate, 0, len(all))
	for sym, snap := range all {
		if strings.EqualFold(sym, exclude) {
			continue
		}
		c := finite(snap.PriceChangePercentage24h)
		if inBand(c) {
			candidates = append(candidates, candidate{symbol: strings.ToUpper(sym), change: c})
		}
	}
	if len(candidates) == 0 {
		return g.stablecoinFor(exclude)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].change != candidates[j].change {
			return candidates[i].change > candidates[j].change
		}
		return candidates[i].symbol < candidates[j].symbol
	})
	return candidates[0].symbol
}

// stablecoinFor returns the first stablecoin other than token.
func (g *Generator) stablecoinFor(token string) string {
	for _, s := range g.stablecoins {
		if !strings.EqualFold(s, token) {
			return s
		}
	}
	return g.stablecoins[0]
}

// IsStablecoin reports whether symbol is a configured stablecoin.
func (g *Generator) IsStablecoin(symbol string) bool {
	for _, s := range g.stablecoins {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
