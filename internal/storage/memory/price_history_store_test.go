package memory

import (
	"context"
	"testing"

	"shiftmind/internal/domain"
)

func TestPriceHistoryStore_InsertBulkAndRange(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	points := []domain.PriceHistoryPoint{
		{Timestamp: 3000, Price: 103},
		{Timestamp: 1000, Price: 101},
		{Timestamp: 2000, Price: 102},
	}
	if err := store.InsertBulk(ctx, "eth", points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// Re-archiving an overlapping window keeps the first value.
	if err := store.InsertBulk(ctx, "ETH", []domain.PriceHistoryPoint{{Timestamp: 2000, Price: 999}, {Timestamp: 4000, Price: 104}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "ETH", 2000, 4000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	want := []domain.PriceHistoryPoint{{Timestamp: 2000, Price: 102}, {Timestamp: 3000, Price: 103}, {Timestamp: 4000, Price: 104}}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	empty, err := store.GetByTimeRange(ctx, "BTC", 0, 5000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no points for BTC, got %d", len(empty))
	}
}
