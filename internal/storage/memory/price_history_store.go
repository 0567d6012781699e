package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"shiftmind/internal/domain"
	"shiftmind/internal/storage"
)

// PriceHistoryStore is an in-memory implementation of storage.PriceHistoryStore.
type PriceHistoryStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]float64 // symbol -> timestamp -> price
}

// NewPriceHistoryStore creates a new in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{
		data: make(map[string]map[int64]float64),
	}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk stores points for symbol, skipping timestamps already present.
func (s *PriceHistoryStore) InsertBulk(_ context.Context, symbol string, points []domain.PriceHistoryPoint) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.data[symbol]
	if !ok {
		series = make(map[int64]float64, len(points))
		s.data[symbol] = series
	}
	for _, p := range points {
		if _, exists := series[p.Timestamp]; exists {
			continue
		}
		series[p.Timestamp] = p.Price
	}
	return nil
}

// GetByTimeRange retrieves points within [start, end] ordered by timestamp ASC.
func (s *PriceHistoryStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]domain.PriceHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PriceHistoryPoint
	for ts, price := range s.data[strings.ToUpper(symbol)] {
		if ts >= start && ts <= end {
			result = append(result, domain.PriceHistoryPoint{Timestamp: ts, Price: price})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}
