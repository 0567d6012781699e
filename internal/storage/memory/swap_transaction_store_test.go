package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"shiftmind/internal/domain"
	"shiftmind/internal/storage"
)

func newTx(shiftID, user string, created time.Time) *domain.SwapTransaction {
	return &domain.SwapTransaction{
		ID:           "id-" + shiftID,
		UserID:       user,
		ShiftID:      shiftID,
		FromToken:    "ETH",
		ToToken:      "USDC",
		FromAmount:   0.5,
		Status:       domain.RecordPending,
		StrategyType: domain.StrategyBalanced,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestSwapTransactionStore_InsertAndGet(t *testing.T) {
	store := NewSwapTransactionStore()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()

	if err := store.Insert(ctx, newTx("s1", "0xabc", base)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByShiftID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByShiftID failed: %v", err)
	}
	if got.FromAmount != 0.5 || got.Status != domain.RecordPending {
		t.Errorf("unexpected record: %+v", got)
	}

	// Returned records are copies.
	got.Status = domain.RecordFailed
	again, _ := store.GetByShiftID(ctx, "s1")
	if again.Status != domain.RecordPending {
		t.Errorf("store was mutated through returned pointer")
	}
}

func TestSwapTransactionStore_DuplicateKey(t *testing.T) {
	store := NewSwapTransactionStore()
	ctx := context.Background()
	now := time.Now()

	if err := store.Insert(ctx, newTx("s1", "0xabc", now)); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	err := store.Insert(ctx, newTx("s1", "0xdef", now))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestSwapTransactionStore_InvalidInput(t *testing.T) {
	store := NewSwapTransactionStore()
	if err := store.Insert(context.Background(), &domain.SwapTransaction{UserID: "u"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSwapTransactionStore_Update(t *testing.T) {
	store := NewSwapTransactionStore()
	ctx := context.Background()
	now := time.Now()

	if err := store.Insert(ctx, newTx("s1", "0xabc", now)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	amount := 1234.5
	err := store.Update(ctx, "s1", domain.SwapUpdate{
		Status:    domain.RecordCompleted,
		ToAmount:  &amount,
		UpdatedAt: now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := store.GetByShiftID(ctx, "s1")
	if got.Status != domain.RecordCompleted || got.ToAmount != 1234.5 {
		t.Errorf("update not applied: %+v", got)
	}
	if !got.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Errorf("UpdatedAt = %v", got.UpdatedAt)
	}

	// Terminal records never change.
	reason := "late"
	err = store.Update(ctx, "s1", domain.SwapUpdate{Status: domain.RecordFailed, ErrorMessage: &reason})
	if !errors.Is(err, storage.ErrTerminalState) {
		t.Errorf("expected ErrTerminalState, got %v", err)
	}
	got, _ = store.GetByShiftID(ctx, "s1")
	if got.Status != domain.RecordCompleted || got.ErrorMessage != "" {
		t.Errorf("terminal record changed: %+v", got)
	}
}

func TestSwapTransactionStore_UpdateErrors(t *testing.T) {
	store := NewSwapTransactionStore()
	ctx := context.Background()

	err := store.Update(ctx, "missing", domain.SwapUpdate{Status: domain.RecordFailed})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Insert(ctx, newTx("s1", "u", time.Now())); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	err = store.Update(ctx, "s1", domain.SwapUpdate{Status: domain.RecordPending})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSwapTransactionStore_FindPending(t *testing.T) {
	store := NewSwapTransactionStore()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	tx := newTx("s1", "0xabc", base)
	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.FindPending(ctx, "0xabc", "ETH", "USDC", domain.StrategyBalanced)
	if err != nil {
		t.Fatalf("FindPending failed: %v", err)
	}
	if got.ShiftID != "s1" {
		t.Errorf("ShiftID = %s, want s1", got.ShiftID)
	}

	if _, err := store.FindPending(ctx, "0xabc", "ETH", "USDC", domain.StrategySafe); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("different strategy: expected ErrNotFound, got %v", err)
	}

	reason := "expired"
	if err := store.Update(ctx, "s1", domain.SwapUpdate{Status: domain.RecordFailed, ErrorMessage: &reason}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := store.FindPending(ctx, "0xabc", "ETH", "USDC", domain.StrategyBalanced); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("failed record: expected ErrNotFound, got %v", err)
	}
}

func TestSwapTransactionStore_OnePendingPerKey(t *testing.T) {
	store := NewSwapTransactionStore()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	if err := store.Insert(ctx, newTx("s1", "0xabc", base)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, newTx("s2", "0xabc", base.Add(time.Minute))); !errors.Is(err, storage.ErrPendingExists) {
		t.Errorf("second pending: expected ErrPendingExists, got %v", err)
	}
	if err := store.Insert(ctx, newTx("s3", "0xdef", base)); err != nil {
		t.Errorf("other user: %v", err)
	}

	if err := store.Update(ctx, "s1", domain.SwapUpdate{Status: domain.RecordCompleted}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := store.Insert(ctx, newTx("s2", "0xabc", base.Add(time.Minute))); err != nil {
		t.Errorf("after completion: %v", err)
	}
}

func TestSwapTransactionStore_Listing(t *testing.T) {
	store := NewSwapTransactionStore()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	strategies := []domain.StrategyType{domain.StrategySafe, domain.StrategyBalanced, domain.StrategyAggressive}
	for i, id := range []string{"s3", "s1", "s2"} {
		// s3 oldest, s2 newest
		tx := newTx(id, "0xabc", base.Add(time.Duration(i)*time.Minute))
		tx.StrategyType = strategies[i]
		if err := store.Insert(ctx, tx); err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}
	if err := store.Insert(ctx, newTx("other", "0xdef", base)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Update(ctx, "s1", domain.SwapUpdate{Status: domain.RecordCompleted}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	pending, err := store.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	wantPending := []string{"other", "s3", "s2"}
	if len(pending) != len(wantPending) {
		t.Fatalf("ListPending len = %d, want %d", len(pending), len(wantPending))
	}
	for i, id := range wantPending {
		if pending[i].ShiftID != id {
			t.Errorf("pending[%d] = %s, want %s", i, pending[i].ShiftID, id)
		}
	}

	history, err := store.ListHistory(ctx, "0xabc", 2)
	if err != nil {
		t.Fatalf("ListHistory failed: %v", err)
	}
	if len(history) != 2 || history[0].ShiftID != "s2" || history[1].ShiftID != "s1" {
		t.Errorf("unexpected history order: %v", shiftIDs(history))
	}
}

func shiftIDs(txs []*domain.SwapTransaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ShiftID
	}
	return out
}
