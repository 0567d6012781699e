package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"shiftmind/internal/domain"
	"shiftmind/internal/storage"
)

// SwapTransactionStore implements storage.SwapTransactionStore using PostgreSQL.
type SwapTransactionStore struct {
	pool *Pool
}

// NewSwapTransactionStore creates a new SwapTransactionStore.
func NewSwapTransactionStore(pool *Pool) *SwapTransactionStore {
	return &SwapTransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapTransactionStore = (*SwapTransactionStore)(nil)

const swapTxColumns = `
	id, user_id, shift_id, from_token, to_token, from_amount, to_amount,
	deposit_address, settle_address, rate, status, strategy_type,
	error_message, expires_at, created_at, updated_at
`

// pendingKeyIndex enforces one pending record per (user, pair, strategy).
const pendingKeyIndex = "idx_swap_transactions_pending_unique"

// Insert adds a new record. Returns ErrDuplicateKey if shift_id exists.
// Returns ErrPendingExists if a pending record has the same user, pair and
// strategy.
func (s *SwapTransactionStore) Insert(ctx context.Context, tx *domain.SwapTransaction) error {
	if tx == nil || tx.ShiftID == "" || tx.UserID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO swap_transactions (` + swapTxColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		tx.ID,
		tx.UserID,
		tx.ShiftID,
		tx.FromToken,
		tx.ToToken,
		tx.FromAmount,
		tx.ToAmount,
		tx.DepositAddress,
		tx.SettleAddress,
		tx.Rate,
		string(tx.Status),
		string(tx.StrategyType),
		tx.ErrorMessage,
		tx.ExpiresAt,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	observe("insert_swap_transaction", start, err)
	if err != nil {
		if name, ok := uniqueViolation(err); ok {
			if name == pendingKeyIndex {
				return storage.ErrPendingExists
			}
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert swap transaction: %w", err)
	}
	return nil
}

// Update applies u to the pending record with shiftID. The status guard in
// the WHERE clause keeps terminal rows immutable under concurrent pollers.
func (s *SwapTransactionStore) Update(ctx context.Context, shiftID string, u domain.SwapUpdate) error {
	if !u.Status.Terminal() {
		return storage.ErrInvalidInput
	}

	updatedAt := u.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		UPDATE swap_transactions SET
			status = $2,
			to_amount = COALESCE($3, to_amount),
			error_message = COALESCE($4, error_message),
			updated_at = $5
		WHERE shift_id = $1 AND status = 'pending'
	`

	start := time.Now()
	tag, err := s.pool.Exec(ctx, query, shiftID, string(u.Status), u.ToAmount, u.ErrorMessage, updatedAt)
	observe("update_swap_transaction", start, err)
	if err != nil {
		return fmt.Errorf("update swap transaction: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing row from a terminal one.
	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM swap_transactions WHERE shift_id = $1`, shiftID).Scan(&status)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("check swap transaction status: %w", err)
	}
	return storage.ErrTerminalState
}

// GetByShiftID retrieves a record. Returns ErrNotFound if not exists.
func (s *SwapTransactionStore) GetByShiftID(ctx context.Context, shiftID string) (*domain.SwapTransaction, error) {
	query := `SELECT ` + swapTxColumns + ` FROM swap_transactions WHERE shift_id = $1`

	start := time.Now()
	tx, err := scanSwapTx(s.pool.QueryRow(ctx, query, shiftID))
	observe("get_swap_transaction", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get swap transaction: %w", err)
	}
	return tx, nil
}

// FindPending returns the oldest pending record for the key.
func (s *SwapTransactionStore) FindPending(ctx context.Context, userID, fromToken, toToken string, strategy domain.StrategyType) (*domain.SwapTransaction, error) {
	query := `
		SELECT ` + swapTxColumns + `
		FROM swap_transactions
		WHERE user_id = $1 AND from_token = $2 AND to_token = $3
			AND strategy_type = $4 AND status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1
	`

	start := time.Now()
	tx, err := scanSwapTx(s.pool.QueryRow(ctx, query, userID, fromToken, toToken, string(strategy)))
	observe("find_pending_swap_transaction", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find pending swap transaction: %w", err)
	}
	return tx, nil
}

// ListPending returns pending records ordered by created_at ASC.
func (s *SwapTransactionStore) ListPending(ctx context.Context, limit int) ([]*domain.SwapTransaction, error) {
	query := `
		SELECT ` + swapTxColumns + `
		FROM swap_transactions
		WHERE status = 'pending'
		ORDER BY created_at ASC, shift_id ASC
		LIMIT $1
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, storage.Limit(limit))
	observe("list_pending_swap_transactions", start, err)
	if err != nil {
		return nil, fmt.Errorf("list pending swap transactions: %w", err)
	}
	defer rows.Close()

	return scanSwapTxs(rows)
}

// ListHistory returns the records of userID ordered by created_at DESC.
func (s *SwapTransactionStore) ListHistory(ctx context.Context, userID string, limit int) ([]*domain.SwapTransaction, error) {
	query := `
		SELECT ` + swapTxColumns + `
		FROM swap_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, shift_id DESC
		LIMIT $2
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, userID, storage.Limit(limit))
	observe("list_swap_history", start, err)
	if err != nil {
		return nil, fmt.Errorf("list swap history: %w", err)
	}
	defer rows.Close()

	return scanSwapTxs(rows)
}

func scanSwapTx(row pgx.Row) (*domain.SwapTransaction, error) {
	var tx domain.SwapTransaction
	var status, strategy string
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.ShiftID,
		&tx.FromToken,
		&tx.ToToken,
		&tx.FromAmount,
		&tx.ToAmount,
		&tx.DepositAddress,
		&tx.SettleAddress,
		&tx.Rate,
		&status,
		&strategy,
		&tx.ErrorMessage,
		&tx.ExpiresAt,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Status = domain.RecordStatus(status)
	tx.StrategyType = domain.StrategyType(strategy)
	return &tx, nil
}

func scanSwapTxs(rows pgx.Rows) ([]*domain.SwapTransaction, error) {
	var result []*domain.SwapTransaction
	for rows.Next() {
		tx, err := scanSwapTx(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap transaction: %w", err)
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap transactions: %w", err)
	}
	return result, nil
}
