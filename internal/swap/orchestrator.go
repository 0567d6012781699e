// Package swap resolves tokens, requests quotes, creates provider orders
// and tracks their persisted records.
package swap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shiftmind/internal/domain"
	"shiftmind/internal/observability"
	"shiftmind/internal/sideshift"
	"shiftmind/internal/storage"
	"shiftmind/internal/wallet"
)

// DefaultProbeAmount is the display amount quoted by ValidatePair.
const DefaultProbeAmount = 0.1

// ErrDuplicatePending is returned when a pending swap already exists for
// the same wallet, pair and strategy.
var ErrDuplicatePending = errors.New("a pending swap already exists for this pair and strategy")

// Provider is the subset of the swap provider API the orchestrator uses.
type Provider interface {
	FixedQuote(ctx context.Context, depositCoin, settleCoin, depositAmount string) (*sideshift.Quote, error)
	CreateFixedShift(ctx context.Context, req sideshift.ShiftRequest) (*sideshift.Order, error)
	Shift(ctx context.Context, id string) (*sideshift.Order, error)
}

var _ Provider = (*sideshift.Client)(nil)

// PairValidation is the result of ValidatePair. Min and max are in display
// units of the deposit token.
type PairValidation struct {
	Valid     bool    `json:"valid"`
	MinAmount float64 `json:"minAmount,omitempty"`
	MaxAmount float64 `json:"maxAmount,omitempty"`
	Error     string  `json:"error,omitempty"`
	Transient bool    `json:"transient,omitempty"`
}

// QuoteView is a provider quote converted to display units.
type QuoteView struct {
	ID            string    `json:"id,omitempty"`
	FromToken     string    `json:"fromToken"`
	ToToken       string    `json:"toToken"`
	DepositAmount float64   `json:"depositAmount"`
	SettleAmount  float64   `json:"settleAmount"`
	Rate          float64   `json:"rate"`
	MinAmount     float64   `json:"minAmount"`
	MaxAmount     float64   `json:"maxAmount"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// SwapResult is the outcome of InitiateSwap.
type SwapResult struct {
	Success        bool       `json:"success"`
	ShiftID        string     `json:"shiftId,omitempty"`
	DepositAddress string     `json:"depositAddress,omitempty"`
	Quote          *QuoteView `json:"quote,omitempty"`
	Error          string     `json:"error,omitempty"`
	Transient      bool       `json:"transient,omitempty"`
}

// StatusResult is the outcome of CheckStatus.
type StatusResult struct {
	ShiftID      string   `json:"shiftId"`
	Status       string   `json:"status"`
	Completed    bool     `json:"completed"`
	Failed       bool     `json:"failed"`
	SettleAmount *float64 `json:"settleAmount,omitempty"`
	Error        string   `json:"error,omitempty"`
	Transient    bool     `json:"transient,omitempty"`
}

// Options configures an Orchestrator.
type Options struct {
	Provider    Provider
	Store       storage.SwapTransactionStore
	Registry    *Registry        // Default: DefaultRegistry()
	ProbeAmount float64          // Default: DefaultProbeAmount
	Now         func() time.Time // Default: time.Now
	NewID       func() string    // Default: uuid.NewString
	Logger      *log.Logger
}

// Orchestrator runs the swap lifecycle against a provider and a store.
// Its exported operations report failures in their result values.
type Orchestrator struct {
	provider    Provider
	store       storage.SwapTransactionStore
	registry    *Registry
	probeAmount float64
	now         func() time.Time
	newID       func() string
	logger      *log.Logger

	mu       sync.Mutex
	inflight map[string]struct{} // reservation keys of swaps being created
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		provider:    opts.Provider,
		store:       opts.Store,
		registry:    opts.Registry,
		probeAmount: opts.ProbeAmount,
		now:         opts.Now,
		newID:       opts.NewID,
		logger:      opts.Logger,
		inflight:    make(map[string]struct{}),
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}
	if o.probeAmount <= 0 {
		o.probeAmount = DefaultProbeAmount
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	return o
}

// Registry returns the token registry in use.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// ValidatePair checks that both tokens are supported and reports the
// provider's deposit limits. Unsupported tokens fail without a network call.
func (o *Orchestrator) ValidatePair(ctx context.Context, from, to string) PairValidation {
	fromTok, toTok, err := o.resolvePair(from, to)
	if err != nil {
		return PairValidation{Valid: false, Error: err.Error()}
	}

	probe, err := ToSmallestUnit(o.probeAmount, fromTok.Decimals)
	if err != nil {
		return PairValidation{Valid: false, Error: err.Error()}
	}

	quote, err := o.provider.FixedQuote(ctx, fromTok.CoinCode, toTok.CoinCode, probe)
	if err != nil {
		return PairValidation{Valid: false, Error: err.Error(), Transient: domain.IsTransient(err)}
	}

	minAmount, err := FromSmallestUnit(string(quote.Min), fromTok.Decimals)
	if err != nil {
		return PairValidation{Valid: false, Error: err.Error()}
	}
	maxAmount, err := FromSmallestUnit(string(quote.Max), fromTok.Decimals)
	if err != nil {
		return PairValidation{Valid: false, Error: err.Error()}
	}

	return PairValidation{Valid: true, MinAmount: minAmount, MaxAmount: maxAmount}
}

// Quote requests a fixed quote for amount of from, in display units.
func (o *Orchestrator) Quote(ctx context.Context, from, to string, amount float64) (*QuoteView, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	fromTok, toTok, err := o.resolvePair(from, to)
	if err != nil {
		return nil, err
	}
	raw, err := depositUnits(amount, fromTok)
	if err != nil {
		return nil, err
	}

	quote, err := o.provider.FixedQuote(ctx, fromTok.CoinCode, toTok.CoinCode, raw)
	if err != nil {
		return nil, err
	}
	return o.quoteView(quote, fromTok, toTok)
}

// InitiateSwap validates req, quotes it, creates the provider order and
// stores a pending record keyed by the order id. A record that cannot be
// stored fails the whole operation.
func (o *Orchestrator) InitiateSwap(ctx context.Context, req domain.SwapRequest) SwapResult {
	res, stage, err := o.initiate(ctx, req)
	if err != nil {
		observability.RecordSwapFailure(stage)
		o.logger.Printf("swap %s->%s failed at %s: %v", req.FromToken, req.ToToken, stage, err)
		return SwapResult{Success: false, Error: err.Error(), Transient: domain.IsTransient(err)}
	}
	observability.RecordSwapInitiated(strings.ToUpper(req.FromToken), strings.ToUpper(req.ToToken))
	return res
}

func (o *Orchestrator) initiate(ctx context.Context, req domain.SwapRequest) (SwapResult, string, error) {
	if err := validateAmount(req.Amount); err != nil {
		return SwapResult{}, "validation", err
	}
	fromTok, toTok, err := o.resolvePair(req.FromToken, req.ToToken)
	if err != nil {
		return SwapResult{}, "validation", err
	}
	if err := wallet.Validate(toTok.Network, req.WalletAddress); err != nil {
		return SwapResult{}, "validation", err
	}
	strategy := req.StrategyType
	if strategy == "" {
		strategy = domain.StrategyBalanced
	}
	if !strategy.Valid() {
		return SwapResult{}, "validation", &domain.ValidationError{Field: "strategy_type", Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}
	userID := req.UserID
	if userID == "" {
		userID = req.WalletAddress
	}
	raw, err := depositUnits(req.Amount, fromTok)
	if err != nil {
		return SwapResult{}, "validation", err
	}

	key := reservationKey(userID, fromTok.Symbol, toTok.Symbol, strategy)
	if !o.reserve(key) {
		return SwapResult{}, "duplicate", ErrDuplicatePending
	}
	defer o.release(key)

	_, err = o.store.FindPending(ctx, userID, fromTok.Symbol, toTok.Symbol, strategy)
	switch {
	case err == nil:
		return SwapResult{}, "duplicate", ErrDuplicatePending
	case !errors.Is(err, storage.ErrNotFound):
		return SwapResult{}, "persist", &domain.PersistenceError{Operation: "find pending swap", Err: err}
	}

	quote, err := o.provider.FixedQuote(ctx, fromTok.CoinCode, toTok.CoinCode, raw)
	if err != nil {
		return SwapResult{}, "quote", err
	}
	view, err := o.quoteView(quote, fromTok, toTok)
	if err != nil {
		return SwapResult{}, "quote", err
	}

	order, err := o.provider.CreateFixedShift(ctx, sideshift.ShiftRequest{
		DepositCoin:   fromTok.CoinCode,
		SettleCoin:    toTok.CoinCode,
		SettleAddress: strings.TrimSpace(req.WalletAddress),
		DepositAmount: raw,
	})
	if err != nil {
		return SwapResult{}, "order", err
	}

	settle, err := FromSmallestUnit(string(order.SettleAmount), toTok.Decimals)
	if err != nil {
		settle = view.SettleAmount
	}
	rate, err := order.Rate.Float()
	if err != nil || rate == 0 {
		rate = view.Rate
	}

	now := o.now().UTC()
	expiresAt := order.ExpiresAt
	if expiresAt == nil {
		exp := view.ExpiresAt
		expiresAt = &exp
	}
	record := &domain.SwapTransaction{
		ID:             o.newID(),
		UserID:         userID,
		ShiftID:        order.ID,
		FromToken:      fromTok.Symbol,
		ToToken:        toTok.Symbol,
		FromAmount:     req.Amount,
		ToAmount:       settle,
		DepositAddress: order.DepositAddress,
		SettleAddress:  strings.TrimSpace(req.WalletAddress),
		Rate:           rate,
		Status:         domain.RecordPending,
		StrategyType:   strategy,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.store.Insert(ctx, record); err != nil {
		// The provider order exists but is untracked; log enough to reconcile.
		o.logger.Printf("order %s created but not recorded: %v", order.ID, err)
		if errors.Is(err, storage.ErrPendingExists) {
			// another instance recorded a pending swap for this key first
			return SwapResult{}, "duplicate", ErrDuplicatePending
		}
		return SwapResult{}, "persist", &domain.PersistenceError{Operation: "insert swap transaction", Err: err}
	}

	return SwapResult{
		Success:        true,
		ShiftID:        order.ID,
		DepositAddress: order.DepositAddress,
		Quote:          view,
	}, "", nil
}

// CheckStatus polls the provider for shiftID and moves the stored record
// into completed or failed when the order reaches a terminal state. A store
// failure is logged and the observed status is still returned. When the
// provider cannot be reached the status is "unknown" and Error is set.
func (o *Orchestrator) CheckStatus(ctx context.Context, shiftID string) StatusResult {
	order, err := o.provider.Shift(ctx, shiftID)
	if err != nil {
		return StatusResult{
			ShiftID:   shiftID,
			Status:    string(domain.OrderUnknown),
			Error:     err.Error(),
			Transient: domain.IsTransient(err),
		}
	}

	status := domain.OrderStatus(strings.ToLower(order.Status))
	res := StatusResult{ShiftID: shiftID, Status: string(status)}

	switch {
	case status.Succeeded():
		amount, err := o.settleAmount(order)
		if err != nil {
			o.logger.Printf("shift %s: %v", shiftID, err)
		} else {
			res.SettleAmount = &amount
		}
		res.Completed = true
		o.apply(ctx, shiftID, domain.SwapUpdate{
			Status:    domain.RecordCompleted,
			ToAmount:  res.SettleAmount,
			UpdatedAt: o.now().UTC(),
		})

	case status.Failed():
		reason := fmt.Sprintf("swap %s on provider", status)
		res.Failed = true
		o.apply(ctx, shiftID, domain.SwapUpdate{
			Status:       domain.RecordFailed,
			ErrorMessage: &reason,
			UpdatedAt:    o.now().UTC(),
		})
	}

	return res
}

// Transaction returns the stored record of shiftID.
func (o *Orchestrator) Transaction(ctx context.Context, shiftID string) (*domain.SwapTransaction, error) {
	tx, err := o.store.GetByShiftID(ctx, strings.TrimSpace(shiftID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Operation: "get swap transaction", Err: err}
	}
	return tx, nil
}

// History lists the swaps of a wallet, newest first.
func (o *Orchestrator) History(ctx context.Context, address string, limit int) ([]*domain.SwapTransaction, error) {
	txs, err := o.store.ListHistory(ctx, strings.TrimSpace(address), storage.Limit(limit))
	if err != nil {
		return nil, &domain.PersistenceError{Operation: "list swap history", Err: err}
	}
	return txs, nil
}

// Pending lists pending records, oldest first.
func (o *Orchestrator) Pending(ctx context.Context, limit int) ([]*domain.SwapTransaction, error) {
	txs, err := o.store.ListPending(ctx, limit)
	if err != nil {
		return nil, &domain.PersistenceError{Operation: "list pending swaps", Err: err}
	}
	return txs, nil
}

func (o *Orchestrator) apply(ctx context.Context, shiftID string, u domain.SwapUpdate) {
	err := o.store.Update(ctx, shiftID, u)
	switch {
	case err == nil:
		observability.RecordStatusTransition(string(u.Status))
	case errors.Is(err, storage.ErrTerminalState):
		// already settled by an earlier poll
	default:
		o.logger.Printf("update swap %s to %s: %v", shiftID, u.Status, err)
	}
}

func (o *Orchestrator) settleAmount(order *sideshift.Order) (float64, error) {
	if tok, ok := o.registry.ByCoinCode(order.SettleCoin); ok {
		return FromSmallestUnit(string(order.SettleAmount), tok.Decimals)
	}
	f, err := order.SettleAmount.Float()
	if err != nil {
		return 0, fmt.Errorf("parse settle amount %q: %w", order.SettleAmount, err)
	}
	return f, nil
}

func (o *Orchestrator) resolvePair(from, to string) (Token, Token, error) {
	fromTok, err := o.registry.Lookup(from)
	if err != nil {
		return Token{}, Token{}, err
	}
	toTok, err := o.registry.Lookup(to)
	if err != nil {
		return Token{}, Token{}, err
	}
	if fromTok.Symbol == toTok.Symbol {
		return Token{}, Token{}, &domain.ValidationError{Field: "to_token", Reason: "must differ from from_token"}
	}
	return fromTok, toTok, nil
}

func (o *Orchestrator) quoteView(q *sideshift.Quote, from, to Token) (*QuoteView, error) {
	deposit, err := FromSmallestUnit(string(q.DepositAmount), from.Decimals)
	if err != nil {
		return nil, err
	}
	settle, err := FromSmallestUnit(string(q.SettleAmount), to.Decimals)
	if err != nil {
		return nil, err
	}
	minAmount, err := FromSmallestUnit(string(q.Min), from.Decimals)
	if err != nil {
		return nil, err
	}
	maxAmount, err := FromSmallestUnit(string(q.Max), from.Decimals)
	if err != nil {
		return nil, err
	}
	rate, err := q.Rate.Float()
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", q.Rate, err)
	}

	ttl := q.ExpiresIn
	if ttl <= 0 {
		ttl = sideshift.DefaultQuoteTTL
	}
	return &QuoteView{
		ID:            q.ID,
		FromToken:     from.Symbol,
		ToToken:       to.Symbol,
		DepositAmount: deposit,
		SettleAmount:  settle,
		Rate:          rate,
		MinAmount:     minAmount,
		MaxAmount:     maxAmount,
		ExpiresAt:     o.now().UTC().Add(time.Duration(ttl) * time.Second),
	}, nil
}

func (o *Orchestrator) reserve(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[key]; busy {
		return false
	}
	o.inflight[key] = struct{}{}
	return true
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	delete(o.inflight, key)
	o.mu.Unlock()
}

func reservationKey(userID, from, to string, strategy domain.StrategyType) string {
	return strings.Join([]string{userID, from, to, string(strategy)}, "|")
}

func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return &domain.ValidationError{Field: "amount", Reason: "must be a finite number"}
	}
	if amount <= 0 {
		return &domain.ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	return nil
}

// depositUnits converts amount and rejects values that truncate to zero.
func depositUnits(amount float64, tok Token) (string, error) {
	raw, err := ToSmallestUnit(amount, tok.Decimals)
	if err != nil {
		return "", &domain.ValidationError{Field: "amount", Reason: err.Error()}
	}
	if raw == "0" {
		return "", &domain.ValidationError{Field: "amount", Reason: fmt.Sprintf("below the smallest unit of %s", tok.Symbol)}
	}
	return raw, nil
}
