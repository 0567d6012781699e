package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shiftmind/internal/domain"
	"shiftmind/internal/storage"
)

// SignalStore implements storage.SignalStore using ClickHouse.
type SignalStore struct {
	conn *Conn
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(conn *Conn) *SignalStore {
	return &SignalStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert appends a signal record.
func (s *SignalStore) Insert(ctx context.Context, r *domain.SignalRecord) error {
	if r == nil || r.Symbol == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO signals (
			symbol, strategy_type, action, from_token, to_token, confidence, reason,
			risk_level, expected_gain, timeframe, volatility, momentum, trend, rsi,
			macd_signal, price, change_24h, generated_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	sig, m := r.Signal, r.Metrics
	err = batch.Append(
		strings.ToUpper(r.Symbol), string(r.StrategyType), string(sig.Action),
		sig.FromToken, sig.ToToken, sig.Confidence, sig.Reason,
		string(sig.RiskLevel), sig.ExpectedGain, sig.Timeframe,
		m.Volatility, m.Momentum, string(m.Trend), m.RSI, int8(m.MACDSignal),
		r.Price, r.Change24h, r.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	began := time.Now()
	err = batch.Send()
	observe("insert_signal", began, err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRecent returns the latest records for symbol, newest first.
func (s *SignalStore) GetRecent(ctx context.Context, symbol string, limit int) ([]*domain.SignalRecord, error) {
	query := `
		SELECT
			symbol, strategy_type, action, from_token, to_token, confidence, reason,
			risk_level, expected_gain, timeframe, volatility, momentum, trend, rsi,
			macd_signal, price, change_24h, generated_at
		FROM signals
		WHERE symbol = ?
		ORDER BY generated_at DESC
		LIMIT ?
	`

	began := time.Now()
	rows, err := s.conn.Query(ctx, query, strings.ToUpper(symbol), storage.Limit(limit))
	observe("get_recent_signals", began, err)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

func scanSignals(rows chRows) ([]*domain.SignalRecord, error) {
	var result []*domain.SignalRecord
	for rows.Next() {
		var (
			r                             domain.SignalRecord
			strategy, action, risk, trend string
			macd                          int8
		)
		err := rows.Scan(
			&r.Symbol, &strategy, &action, &r.Signal.FromToken, &r.Signal.ToToken,
			&r.Signal.Confidence, &r.Signal.Reason, &risk, &r.Signal.ExpectedGain,
			&r.Signal.Timeframe, &r.Metrics.Volatility, &r.Metrics.Momentum, &trend,
			&r.Metrics.RSI, &macd, &r.Price, &r.Change24h, &r.GeneratedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		r.StrategyType = domain.StrategyType(strategy)
		r.Signal.Action = domain.Action(action)
		r.Signal.RiskLevel = domain.RiskLevel(risk)
		r.Metrics.Trend = domain.Trend(trend)
		r.Metrics.MACDSignal = int(macd)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return result, nil
}
