package domain

import (
	"fmt"
	"strings"
	"time"
)

// StrategyType names a risk profile.
type StrategyType string

// Strategy types.
const (
	StrategySafe       StrategyType = "safe"
	StrategyBalanced   StrategyType = "balanced"
	StrategyAggressive StrategyType = "aggressive"
)

// legacy name still stored by older clients
const strategyStable = "stable"

// ParseStrategyType converts user input into a StrategyType.
// "stable" is accepted as an alias of balanced.
func ParseStrategyType(s string) (StrategyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StrategySafe):
		return StrategySafe, nil
	case string(StrategyBalanced), strategyStable:
		return StrategyBalanced, nil
	case string(StrategyAggressive):
		return StrategyAggressive, nil
	default:
		return "", &ValidationError{Field: "strategy_type", Reason: fmt.Sprintf("unknown strategy %q", s)}
	}
}

// Valid reports whether t is one of the known strategies.
func (t StrategyType) Valid() bool {
	switch t {
	case StrategySafe, StrategyBalanced, StrategyAggressive:
		return true
	}
	return false
}

// StrategyWeights weighs the four component scores of a signal.
// Weights need not sum to 1; the generator normalizes by their sum.
type StrategyWeights struct {
	Momentum   float64
	Volatility float64
	Trend      float64
	RSI        float64
}

// Sum returns the total weight.
func (w StrategyWeights) Sum() float64 {
	return w.Momentum + w.Volatility + w.Trend + w.RSI
}

// UserStrategy is the persisted strategy selection of a wallet.
type UserStrategy struct {
	UserAddress     string
	StrategyType    StrategyType
	AutoSwapEnabled bool
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
