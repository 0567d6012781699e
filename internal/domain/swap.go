package domain

import "time"

// SwapRequest asks for a conversion of Amount of FromToken into ToToken,
// settled to WalletAddress.
type SwapRequest struct {
	UserID        string
	FromToken     string // registry symbol
	ToToken       string // registry symbol
	Amount        float64
	WalletAddress string
	StrategyType  StrategyType
}

// OrderStatus is the status reported by the swap provider for an order.
type OrderStatus string

// Provider order statuses.
const (
	OrderWaiting    OrderStatus = "waiting"
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderReview     OrderStatus = "review"
	OrderSettling   OrderStatus = "settling"
	OrderSettled    OrderStatus = "settled"
	OrderComplete   OrderStatus = "complete"
	OrderRefund     OrderStatus = "refund"
	OrderRefunding  OrderStatus = "refunding"
	OrderRefunded   OrderStatus = "refunded"
	OrderExpired    OrderStatus = "expired"
	OrderFailed     OrderStatus = "failed"
	OrderError      OrderStatus = "error"

	// OrderUnknown is reported when the provider could not be asked.
	OrderUnknown OrderStatus = "unknown"
)

// Succeeded reports a terminal success state.
func (s OrderStatus) Succeeded() bool {
	return s == OrderSettled || s == OrderComplete
}

// Failed reports a terminal failure state.
func (s OrderStatus) Failed() bool {
	switch s {
	case OrderExpired, OrderRefund, OrderRefunded, OrderFailed, OrderError:
		return true
	}
	return false
}

// Terminal reports whether no further provider transitions are expected.
func (s OrderStatus) Terminal() bool {
	return s.Succeeded() || s.Failed()
}

// RecordStatus is the lifecycle state of a persisted swap transaction.
type RecordStatus string

// Record statuses.
const (
	RecordPending   RecordStatus = "pending"
	RecordCompleted RecordStatus = "completed"
	RecordFailed    RecordStatus = "failed"
)

// Terminal reports whether the record can no longer change.
func (s RecordStatus) Terminal() bool {
	return s == RecordCompleted || s == RecordFailed
}

// CanTransition reports whether a record may move from one status to another.
// Only pending records move, and only into a terminal state.
func CanTransition(from, to RecordStatus) bool {
	return from == RecordPending && to.Terminal()
}

// SwapTransaction is the persisted record of one provider order.
// ShiftID (the provider order id) is the natural key.
type SwapTransaction struct {
	ID             string
	UserID         string
	ShiftID        string
	FromToken      string // registry symbol
	ToToken        string // registry symbol
	FromAmount     float64
	ToAmount       float64
	DepositAddress string
	SettleAddress  string
	Rate           float64
	Status         RecordStatus
	StrategyType   StrategyType
	ErrorMessage   string
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SwapUpdate is a patch applied to a pending record.
type SwapUpdate struct {
	Status       RecordStatus
	ToAmount     *float64
	ErrorMessage *string
	UpdatedAt    time.Time
}
