package postgres

import (
	"context"
	"fmt"
	"time"

	"shiftmind/internal/domain"
	"shiftmind/internal/storage"
)

// StrategyStore implements storage.StrategyStore using PostgreSQL.
type StrategyStore struct {
	pool *Pool
}

// NewStrategyStore creates a new StrategyStore.
func NewStrategyStore(pool *Pool) *StrategyStore {
	return &StrategyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StrategyStore = (*StrategyStore)(nil)

// Upsert creates or replaces the strategy of s.UserAddress, keeping created_at.
func (st *StrategyStore) Upsert(ctx context.Context, s *domain.UserStrategy) error {
	if s == nil || s.UserAddress == "" || !s.StrategyType.Valid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO user_strategies (
			user_address, strategy_type, auto_swap_enabled, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_address) DO UPDATE SET
			strategy_type = EXCLUDED.strategy_type,
			auto_swap_enabled = EXCLUDED.auto_swap_enabled,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	start := time.Now()
	_, err := st.pool.Exec(ctx, query,
		s.UserAddress,
		string(s.StrategyType),
		s.AutoSwapEnabled,
		s.IsActive,
		s.CreatedAt,
		s.UpdatedAt,
	)
	observe("upsert_user_strategy", start, err)
	if err != nil {
		return fmt.Errorf("upsert user strategy: %w", err)
	}
	return nil
}

// Get retrieves the strategy of a wallet. Returns ErrNotFound if not exists.
func (st *StrategyStore) Get(ctx context.Context, userAddress string) (*domain.UserStrategy, error) {
	query := `
		SELECT user_address, strategy_type, auto_swap_enabled, is_active, created_at, updated_at
		FROM user_strategies
		WHERE user_address = $1
	`

	var s domain.UserStrategy
	var strategyType string
	start := time.Now()
	err := st.pool.QueryRow(ctx, query, userAddress).Scan(
		&s.UserAddress,
		&strategyType,
		&s.AutoSwapEnabled,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	observe("get_user_strategy", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user strategy: %w", err)
	}
	s.StrategyType = domain.StrategyType(strategyType)
	return &s, nil
}
