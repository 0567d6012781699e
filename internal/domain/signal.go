package domain

import "time"

// Action is the recommended trade action.
type Action string

// Actions.
const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
	ActionSwap Action = "swap"
)

// RiskLevel labels the risk of acting on a signal.
type RiskLevel string

// Risk levels.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// AISignal is a trade recommendation. Confidence and RiskLevel are always
// populated, including for ActionHold.
type AISignal struct {
	Action       Action    `json:"action"`
	FromToken    string    `json:"fromToken"`
	ToToken      string    `json:"toToken"`
	Confidence   float64   `json:"confidence"` // [0, 1], two decimals
	Reason       string    `json:"reason"`
	RiskLevel    RiskLevel `json:"riskLevel"`
	ExpectedGain float64   `json:"expectedGain"` // percent, heuristic
	Timeframe    string    `json:"timeframe"`
}

// SignalRecord is an archived signal together with the inputs that produced it.
type SignalRecord struct {
	Symbol       string
	StrategyType StrategyType
	Signal       AISignal
	Metrics      MarketMetrics
	Price        float64
	Change24h    float64
	GeneratedAt  time.Time
}
