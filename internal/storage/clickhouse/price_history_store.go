package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shiftmind/internal/domain"
	"shiftmind/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using ClickHouse.
// The table is a ReplacingMergeTree on (symbol, timestamp); reads use FINAL.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk stores points for symbol, skipping timestamps already archived.
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, symbol string, points []domain.PriceHistoryPoint) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)

	lo, hi := points[0].Timestamp, points[0].Timestamp
	for _, p := range points {
		lo = min(lo, p.Timestamp)
		hi = max(hi, p.Timestamp)
	}
	existing, err := s.timestamps(ctx, symbol, lo, hi)
	if err != nil {
		return fmt.Errorf("load existing timestamps: %w", err)
	}

	fresh := make([]domain.PriceHistoryPoint, 0, len(points))
	for _, p := range points {
		if _, ok := existing[p.Timestamp]; ok {
			continue
		}
		existing[p.Timestamp] = struct{}{}
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_history (symbol, timestamp, price)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range fresh {
		if err := batch.Append(symbol, p.Timestamp, p.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	began := time.Now()
	err = batch.Send()
	observe("insert_price_history", began, err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves points within [start, end] ordered by timestamp ASC.
func (s *PriceHistoryStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]domain.PriceHistoryPoint, error) {
	query := `
		SELECT timestamp, price
		FROM price_history FINAL
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	began := time.Now()
	rows, err := s.conn.Query(ctx, query, strings.ToUpper(symbol), start, end)
	observe("get_price_history", began, err)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

func (s *PriceHistoryStore) timestamps(ctx context.Context, symbol string, lo, hi int64) (map[int64]struct{}, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT DISTINCT timestamp FROM price_history WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?`,
		symbol, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]struct{})
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out[ts] = struct{}{}
	}
	return out, rows.Err()
}

func scanPricePoints(rows chRows) ([]domain.PriceHistoryPoint, error) {
	var result []domain.PriceHistoryPoint
	for rows.Next() {
		var p domain.PriceHistoryPoint
		if err := rows.Scan(&p.Timestamp, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price points: %w", err)
	}
	return result, nil
}
