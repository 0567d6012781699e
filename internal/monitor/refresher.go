// Package monitor runs the periodic loops of the service: price refresh
// with signal regeneration and auto-swap, and swap status polling.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"shiftmind/internal/domain"
	"shiftmind/internal/observability"
	"shiftmind/internal/signal"
	"shiftmind/internal/storage"
	"shiftmind/internal/swap"
)

// EventSignal is the stream event name of a regenerated signal.
const EventSignal = "signal"

// MarketData is the market-data provider used by the refresher.
type MarketData interface {
	Snapshots(ctx context.Context, symbols []string) (map[string]domain.TokenPriceSnapshot, error)
	History(ctx context.Context, symbol string, days int) ([]domain.PriceHistoryPoint, error)
}

// Publisher receives each regenerated signal.
type Publisher interface {
	Publish(event string, payload any)
}

// Swapper initiates swaps.
type Swapper interface {
	InitiateSwap(ctx context.Context, req domain.SwapRequest) swap.SwapResult
}

// Snapshot is the outcome of one refresh run.
type Snapshot struct {
	Symbol    string                               `json:"symbol"`
	Strategy  domain.StrategyType                  `json:"strategy"`
	Signal    domain.AISignal                      `json:"signal"`
	Metrics   domain.MarketMetrics                 `json:"metrics"`
	Prices    map[string]domain.TokenPriceSnapshot `json:"prices"`
	History   []domain.PriceHistoryPoint           `json:"history,omitempty"`
	AutoSwap  *swap.SwapResult                     `json:"autoSwap,omitempty"`
	Stale     bool                                 `json:"stale,omitempty"`
	UpdatedAt time.Time                            `json:"updatedAt"`
}

// RefresherOptions configures a PriceRefresher.
type RefresherOptions struct {
	Market    MarketData
	Generator *signal.Generator
	Symbols   []string // tokens to snapshot
	MainToken string   // token the signal is generated for. Default: ETH
	// HistoryDays of MainToken history to analyze. Default: 7
	HistoryDays int
	Interval    time.Duration // Default: 60s

	// Strategies holds the wallet's selected strategy. Optional.
	Strategies      storage.StrategyStore
	WalletAddress   string
	DefaultStrategy domain.StrategyType // used when no strategy is stored. Default: balanced

	PriceArchive  storage.PriceHistoryStore // optional
	SignalArchive storage.SignalStore       // optional
	Publisher     Publisher                 // optional

	Swapper        Swapper // optional
	AutoSwap       bool    // used when no strategy is stored
	AutoSwapAmount float64 // Default: 0.01
	MinConfidence  float64 // Default: 0.75

	Now    func() time.Time
	Logger *log.Logger
}

// PriceRefresher periodically fetches prices, regenerates the signal for
// the main token and optionally acts on it.
type PriceRefresher struct {
	opts   RefresherOptions
	logger *log.Logger

	mu     sync.RWMutex
	latest *Snapshot
}

// NewPriceRefresher creates a refresher.
func NewPriceRefresher(opts RefresherOptions) *PriceRefresher {
	if opts.MainToken == "" {
		opts.MainToken = "ETH"
	}
	opts.MainToken = strings.ToUpper(opts.MainToken)
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 7
	}
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if !opts.DefaultStrategy.Valid() {
		opts.DefaultStrategy = domain.StrategyBalanced
	}
	if opts.AutoSwapAmount <= 0 {
		opts.AutoSwapAmount = 0.01
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.75
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Generator == nil {
		opts.Generator = signal.NewGenerator(signal.DefaultProfiles(), signal.DefaultStablecoins())
	}
	if !containsFold(opts.Symbols, opts.MainToken) {
		opts.Symbols = append(append([]string(nil), opts.Symbols...), opts.MainToken)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &PriceRefresher{opts: opts, logger: logger}
}

// Run refreshes immediately and then on every tick until ctx is done.
// No refresh starts after cancellation.
func (r *PriceRefresher) Run(ctx context.Context) error {
	r.logger.Printf("price refresher started: token=%s interval=%v", r.opts.MainToken, r.opts.Interval)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Printf("refresh failed: %v", err)
		}

		select {
		case <-ctx.Done():
			r.logger.Println("price refresher stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Latest returns the most recent successful snapshot.
func (r *PriceRefresher) Latest() (*Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.latest != nil
}

// RunOnce performs a single refresh.
func (r *PriceRefresher) RunOnce(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	snap, err := r.refresh(ctx)
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordRefreshRun(status, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.latest = snap
	r.mu.Unlock()
	return snap, nil
}

func (r *PriceRefresher) refresh(ctx context.Context) (*Snapshot, error) {
	prices, err := r.opts.Market.Snapshots(ctx, r.opts.Symbols)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshots: %w", err)
	}
	current, ok := prices[r.opts.MainToken]
	if !ok {
		return nil, fmt.Errorf("no snapshot for %s", r.opts.MainToken)
	}
	if current.Stale {
		r.logger.Printf("market data for %s is stale, provider unreachable", r.opts.MainToken)
	}

	history, err := r.opts.Market.History(ctx, r.opts.MainToken, r.opts.HistoryDays)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	r.archiveHistory(ctx, history)

	strategy, autoSwap := r.strategy(ctx)

	// Generation is pure; a cancelled context must not produce a signal.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sig, metrics := r.opts.Generator.GenerateWithMetrics(r.opts.MainToken, current, history, strategy, prices)
	observability.RecordSignal(string(strategy), string(sig.Action), sig.Confidence)

	snap := &Snapshot{
		Symbol:    r.opts.MainToken,
		Strategy:  strategy,
		Signal:    sig,
		Metrics:   metrics,
		Prices:    prices,
		History:   history,
		Stale:     current.Stale,
		UpdatedAt: r.opts.Now().UTC(),
	}

	r.archiveSignal(ctx, snap, current)
	if r.opts.Publisher != nil {
		r.opts.Publisher.Publish(EventSignal, snap)
	}

	switch {
	case autoSwap && snap.Stale:
		r.logger.Printf("auto-swap skipped: %s price is stale", r.opts.MainToken)
	case autoSwap:
		snap.AutoSwap = r.autoSwap(ctx, sig, strategy)
	}
	return snap, nil
}

// strategy resolves the wallet's strategy and auto-swap flag.
func (r *PriceRefresher) strategy(ctx context.Context) (domain.StrategyType, bool) {
	if r.opts.Strategies == nil || r.opts.WalletAddress == "" {
		return r.opts.DefaultStrategy, r.opts.AutoSwap
	}
	s, err := r.opts.Strategies.Get(ctx, r.opts.WalletAddress)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Printf("load strategy for %s: %v", r.opts.WalletAddress, err)
		}
		return r.opts.DefaultStrategy, r.opts.AutoSwap
	}
	if !s.StrategyType.Valid() || !s.IsActive {
		return r.opts.DefaultStrategy, r.opts.AutoSwap
	}
	return s.StrategyType, s.AutoSwapEnabled
}

func (r *PriceRefresher) archiveHistory(ctx context.Context, history []domain.PriceHistoryPoint) {
	if r.opts.PriceArchive == nil || len(history) == 0 {
		return
	}
	if err := r.opts.PriceArchive.InsertBulk(ctx, r.opts.MainToken, history); err != nil {
		r.logger.Printf("archive %s history: %v", r.opts.MainToken, err)
	}
}

func (r *PriceRefresher) archiveSignal(ctx context.Context, snap *Snapshot, current domain.TokenPriceSnapshot) {
	if r.opts.SignalArchive == nil {
		return
	}
	err := r.opts.SignalArchive.Insert(ctx, &domain.SignalRecord{
		Symbol:       snap.Symbol,
		StrategyType: snap.Strategy,
		Signal:       snap.Signal,
		Metrics:      snap.Metrics,
		Price:        current.CurrentPrice,
		Change24h:    current.PriceChangePercentage24h,
		GeneratedAt:  snap.UpdatedAt,
	})
	if err != nil {
		r.logger.Printf("archive signal: %v", err)
	}
}

// autoSwap acts on a non-hold signal above the confidence threshold.
// A buy is funded from the first stablecoin.
func (r *PriceRefresher) autoSwap(ctx context.Context, sig domain.AISignal, strategy domain.StrategyType) *swap.SwapResult {
	if r.opts.Swapper == nil || r.opts.WalletAddress == "" {
		return nil
	}
	if sig.Action == domain.ActionHold || sig.Confidence <= r.opts.MinConfidence {
		return nil
	}

	from, to := sig.FromToken, sig.ToToken
	if sig.Action == domain.ActionBuy {
		stables := r.opts.Generator.Stablecoins()
		if len(stables) == 0 {
			return nil
		}
		from, to = stables[0], sig.FromToken
	}
	if strings.EqualFold(from, to) {
		return nil
	}

	res := r.opts.Swapper.InitiateSwap(ctx, domain.SwapRequest{
		UserID:        r.opts.WalletAddress,
		FromToken:     from,
		ToToken:       to,
		Amount:        r.opts.AutoSwapAmount,
		WalletAddress: r.opts.WalletAddress,
		StrategyType:  strategy,
	})
	if res.Success {
		r.logger.Printf("auto-swap %s -> %s created: shift=%s", from, to, res.ShiftID)
	} else {
		r.logger.Printf("auto-swap %s -> %s failed: %s", from, to, res.Error)
	}
	return &res
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
