package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftmind/internal/domain"
	"shiftmind/internal/storage"
)

func testTx(shiftID, user string, created time.Time) *domain.SwapTransaction {
	expires := created.Add(10 * time.Minute)
	return &domain.SwapTransaction{
		ID:             "00000000-0000-0000-0000-" + shiftID,
		UserID:         user,
		ShiftID:        shiftID,
		FromToken:      "ETH",
		ToToken:        "USDC",
		FromAmount:     0.25,
		DepositAddress: "0xdeposit",
		SettleAddress:  user,
		Rate:           2500,
		Status:         domain.RecordPending,
		StrategyType:   domain.StrategyBalanced,
		ExpiresAt:      &expires,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestSwapTransactionStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSwapTransactionStore(pool)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tx := testTx("000000000001", "0xabc", created)
	require.NoError(t, store.Insert(ctx, tx))

	got, err := store.GetByShiftID(ctx, tx.ShiftID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, domain.RecordPending, got.Status)
	assert.Equal(t, domain.StrategyBalanced, got.StrategyType)
	assert.InDelta(t, 0.25, got.FromAmount, 1e-12)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(*tx.ExpiresAt))

	dup := testTx("000000000001", "0xother", created)
	dup.ID = "00000000-0000-0000-0000-999999999999"
	assert.ErrorIs(t, store.Insert(ctx, dup), storage.ErrDuplicateKey)

	_, err = store.GetByShiftID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSwapTransactionStore_UpdateLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSwapTransactionStore(pool)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, testTx("000000000001", "0xabc", created)))

	assert.ErrorIs(t, store.Update(ctx, "missing", domain.SwapUpdate{Status: domain.RecordFailed}), storage.ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, "000000000001", domain.SwapUpdate{Status: domain.RecordPending}), storage.ErrInvalidInput)

	err := store.Update(ctx, "000000000001", domain.SwapUpdate{
		Status:    domain.RecordCompleted,
		ToAmount:  ptr(612.5),
		UpdatedAt: created.Add(time.Minute),
	})
	require.NoError(t, err)

	got, err := store.GetByShiftID(ctx, "000000000001")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordCompleted, got.Status)
	assert.InDelta(t, 612.5, got.ToAmount, 1e-9)
	assert.Empty(t, got.ErrorMessage)

	err = store.Update(ctx, "000000000001", domain.SwapUpdate{
		Status:       domain.RecordFailed,
		ErrorMessage: ptr("late refund"),
	})
	assert.ErrorIs(t, err, storage.ErrTerminalState)

	got, err = store.GetByShiftID(ctx, "000000000001")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordCompleted, got.Status)
}

func TestSwapTransactionStore_Queries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSwapTransactionStore(pool)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, testTx("000000000001", "0xabc", base)))
	require.NoError(t, store.Update(ctx, "000000000001", domain.SwapUpdate{Status: domain.RecordFailed, ErrorMessage: ptr("expired")}))
	require.NoError(t, store.Insert(ctx, testTx("000000000002", "0xabc", base.Add(time.Minute))))
	require.NoError(t, store.Insert(ctx, testTx("000000000003", "0xdef", base.Add(2*time.Minute))))

	pending, err := store.FindPending(ctx, "0xabc", "ETH", "USDC", domain.StrategyBalanced)
	require.NoError(t, err)
	assert.Equal(t, "000000000002", pending.ShiftID)

	_, err = store.FindPending(ctx, "0xabc", "ETH", "USDC", domain.StrategySafe)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	list, err := store.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "000000000002", list[0].ShiftID)
	assert.Equal(t, "000000000003", list[1].ShiftID)

	history, err := store.ListHistory(ctx, "0xabc", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "000000000002", history[0].ShiftID)
	assert.Equal(t, "000000000001", history[1].ShiftID)
	assert.Equal(t, "expired", history[1].ErrorMessage)
}

func TestSwapTransactionStore_OnePendingPerKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSwapTransactionStore(pool)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, testTx("000000000001", "0xabc", base)))
	assert.ErrorIs(t, store.Insert(ctx, testTx("000000000002", "0xabc", base.Add(time.Minute))), storage.ErrPendingExists)

	other := testTx("000000000003", "0xabc", base)
	other.StrategyType = domain.StrategySafe
	require.NoError(t, store.Insert(ctx, other))

	require.NoError(t, store.Update(ctx, "000000000001", domain.SwapUpdate{Status: domain.RecordCompleted}))
	require.NoError(t, store.Insert(ctx, testTx("000000000002", "0xabc", base.Add(time.Minute))))
}
