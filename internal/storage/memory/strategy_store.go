package memory

import (
	"context"
	"sync"

	"shiftmind/internal/domain"
	"shiftmind/internal/storage"
)

// StrategyStore is an in-memory implementation of storage.StrategyStore.
type StrategyStore struct {
	mu   sync.RWMutex
	data map[string]*domain.UserStrategy // keyed by user address
}

// NewStrategyStore creates a new in-memory strategy store.
func NewStrategyStore() *StrategyStore {
	return &StrategyStore{
		data: make(map[string]*domain.UserStrategy),
	}
}

// Compile-time interface check.
var _ storage.StrategyStore = (*StrategyStore)(nil)

// Upsert creates or replaces the strategy of s.UserAddress.
func (st *StrategyStore) Upsert(_ context.Context, s *domain.UserStrategy) error {
	if s == nil || s.UserAddress == "" || !s.StrategyType.Valid() {
		return storage.ErrInvalidInput
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	copy := *s
	if existing, ok := st.data[s.UserAddress]; ok {
		copy.CreatedAt = existing.CreatedAt
	}
	st.data[s.UserAddress] = &copy
	return nil
}

// Get retrieves the strategy of a wallet. Returns ErrNotFound if not exists.
func (st *StrategyStore) Get(_ context.Context, userAddress string) (*domain.UserStrategy, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.data[userAddress]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *s
	return &copy, nil
}
