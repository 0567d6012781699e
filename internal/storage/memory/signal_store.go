package memory

import (
	"context"
	"strings"
	"sync"

	"shiftmind/internal/domain"
	"shiftmind/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
// Records are kept in insertion order per symbol.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.SignalRecord
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string][]*domain.SignalRecord),
	}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert appends a signal record.
func (s *SignalStore) Insert(_ context.Context, r *domain.SignalRecord) error {
	if r == nil || r.Symbol == "" {
		return storage.ErrInvalidInput
	}

	copy := *r
	copy.Symbol = strings.ToUpper(r.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[copy.Symbol] = append(s.data[copy.Symbol], &copy)
	return nil
}

// GetRecent returns the latest records for symbol, newest first.
func (s *SignalStore) GetRecent(_ context.Context, symbol string, limit int) ([]*domain.SignalRecord, error) {
	limit = storage.Limit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.data[strings.ToUpper(symbol)]
	result := make([]*domain.SignalRecord, 0, min(limit, len(records)))
	for i := len(records) - 1; i >= 0 && len(result) < limit; i-- {
		copy := *records[i]
		result = append(result, &copy)
	}
	return result, nil
}
