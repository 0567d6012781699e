package storage

import (
	"context"

	"shiftmind/internal/domain"
)

// DefaultHistoryLimit is the page size used when a caller passes limit <= 0.
const DefaultHistoryLimit = 50

// StrategyStore provides access to user_strategies storage.
type StrategyStore interface {
	// Upsert creates or replaces the strategy of s.UserAddress.
	// CreatedAt of an existing row is preserved.
	Upsert(ctx context.Context, s *domain.UserStrategy) error

	// Get retrieves the strategy of a wallet. Returns ErrNotFound if not exists.
	Get(ctx context.Context, userAddress string) (*domain.UserStrategy, error)
}

// SwapTransactionStore provides access to swap_transactions storage.
// Records are keyed by the provider order id (shift id).
type SwapTransactionStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if shift_id exists.
	Insert(ctx context.Context, tx *domain.SwapTransaction) error

	// Update applies u to the record with shiftID. Returns ErrNotFound if
	// no record matches, ErrTerminalState if the record is no longer pending
	// and ErrInvalidInput if u.Status is not a terminal status.
	Update(ctx context.Context, shiftID string, u domain.SwapUpdate) error

	// GetByShiftID retrieves a record. Returns ErrNotFound if not exists.
	GetByShiftID(ctx context.Context, shiftID string) (*domain.SwapTransaction, error)

	// FindPending returns the pending record for (userID, from, to, strategy).
	// Returns ErrNotFound if there is none.
	FindPending(ctx context.Context, userID, fromToken, toToken string, strategy domain.StrategyType) (*domain.SwapTransaction, error)

	// ListPending returns pending records, oldest first.
	ListPending(ctx context.Context, limit int) ([]*domain.SwapTransaction, error)

	// ListHistory returns the records of userID, newest first.
	ListHistory(ctx context.Context, userID string, limit int) ([]*domain.SwapTransaction, error)
}

// PriceHistoryStore archives price history points per token symbol.
type PriceHistoryStore interface {
	// InsertBulk stores points for symbol. Points already stored for the
	// same (symbol, timestamp) are skipped.
	InsertBulk(ctx context.Context, symbol string, points []domain.PriceHistoryPoint) error

	// GetByTimeRange retrieves points within [start, end] (inclusive, ms), ascending.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]domain.PriceHistoryPoint, error)
}

// SignalStore archives generated signals.
type SignalStore interface {
	// Insert appends a signal record.
	Insert(ctx context.Context, r *domain.SignalRecord) error

	// GetRecent returns the latest records for symbol, newest first.
	GetRecent(ctx context.Context, symbol string, limit int) ([]*domain.SignalRecord, error)
}

// ValidateUpdate checks the invariants shared by all SwapTransactionStore
// implementations for a record in state current.
func ValidateUpdate(current domain.RecordStatus, u domain.SwapUpdate) error {
	if !u.Status.Terminal() {
		return ErrInvalidInput
	}
	if !domain.CanTransition(current, u.Status) {
		return ErrTerminalState
	}
	return nil
}

// Limit normalizes a caller-supplied page size.
func Limit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
