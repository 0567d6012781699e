package memory

import (
	"context"
	"sort"
	"sync"

	"shiftmind/internal/domain"
	"shiftmind/internal/storage"
)

// SwapTransactionStore is an in-memory implementation of storage.SwapTransactionStore.
type SwapTransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SwapTransaction // keyed by shift id
}

// NewSwapTransactionStore creates a new in-memory swap transaction store.
func NewSwapTransactionStore() *SwapTransactionStore {
	return &SwapTransactionStore{
		data: make(map[string]*domain.SwapTransaction),
	}
}

// Compile-time interface check.
var _ storage.SwapTransactionStore = (*SwapTransactionStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if shift id exists.
// Returns ErrPendingExists if a pending record has the same user, pair and
// strategy.
func (s *SwapTransactionStore) Insert(_ context.Context, tx *domain.SwapTransaction) error {
	if tx == nil || tx.ShiftID == "" || tx.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tx.ShiftID]; exists {
		return storage.ErrDuplicateKey
	}
	if tx.Status == domain.RecordPending {
		for _, other := range s.data {
			if other.Status == domain.RecordPending && other.UserID == tx.UserID &&
				other.FromToken == tx.FromToken && other.ToToken == tx.ToToken &&
				other.StrategyType == tx.StrategyType {
				return storage.ErrPendingExists
			}
		}
	}

	s.data[tx.ShiftID] = cloneTx(tx)
	return nil
}

// Update applies u to the pending record with shiftID.
func (s *SwapTransactionStore) Update(_ context.Context, shiftID string, u domain.SwapUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.data[shiftID]
	if !ok {
		return storage.ErrNotFound
	}
	if err := storage.ValidateUpdate(tx.Status, u); err != nil {
		return err
	}

	tx.Status = u.Status
	if u.ToAmount != nil {
		tx.ToAmount = *u.ToAmount
	}
	if u.ErrorMessage != nil {
		tx.ErrorMessage = *u.ErrorMessage
	}
	tx.UpdatedAt = u.UpdatedAt
	return nil
}

// GetByShiftID retrieves a record. Returns ErrNotFound if not exists.
func (s *SwapTransactionStore) GetByShiftID(_ context.Context, shiftID string) (*domain.SwapTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.data[shiftID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneTx(tx), nil
}

// FindPending returns the oldest pending record matching the key.
func (s *SwapTransactionStore) FindPending(_ context.Context, userID, fromToken, toToken string, strategy domain.StrategyType) (*domain.SwapTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.SwapTransaction
	for _, tx := range s.data {
		if tx.Status != domain.RecordPending || tx.UserID != userID ||
			tx.FromToken != fromToken || tx.ToToken != toToken || tx.StrategyType != strategy {
			continue
		}
		if found == nil || tx.CreatedAt.Before(found.CreatedAt) {
			found = tx
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return cloneTx(found), nil
}

// ListPending returns pending records ordered by created_at ASC.
func (s *SwapTransactionStore) ListPending(_ context.Context, limit int) ([]*domain.SwapTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SwapTransaction
	for _, tx := range s.data {
		if tx.Status == domain.RecordPending {
			result = append(result, cloneTx(tx))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ShiftID < result[j].ShiftID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return truncate(result, storage.Limit(limit)), nil
}

// ListHistory returns the records of userID ordered by created_at DESC.
func (s *SwapTransactionStore) ListHistory(_ context.Context, userID string, limit int) ([]*domain.SwapTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SwapTransaction
	for _, tx := range s.data {
		if tx.UserID == userID {
			result = append(result, cloneTx(tx))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ShiftID > result[j].ShiftID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return truncate(result, storage.Limit(limit)), nil
}

func cloneTx(tx *domain.SwapTransaction) *domain.SwapTransaction {
	copy := *tx
	if tx.ExpiresAt != nil {
		t := *tx.ExpiresAt
		copy.ExpiresAt = &t
	}
	return &copy
}

func truncate[T any](s []T, limit int) []T {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
