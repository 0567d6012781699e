package monitor

import (
	"context"
	"log"
	"time"

	"shiftmind/internal/domain"
	"shiftmind/internal/observability"
	"shiftmind/internal/swap"
)

// StatusChecker polls swap status and lists pending swaps.
type StatusChecker interface {
	CheckStatus(ctx context.Context, shiftID string) swap.StatusResult
	Pending(ctx context.Context, limit int) ([]*domain.SwapTransaction, error)
}

// PollerOptions configures a StatusPoller.
type PollerOptions struct {
	Checker   StatusChecker
	Interval  time.Duration // Default: 30s
	BatchSize int           // Default: 100
	Logger    *log.Logger
}

// StatusPoller checks every pending swap on a fixed interval.
type StatusPoller struct {
	checker   StatusChecker
	interval  time.Duration
	batchSize int
	logger    *log.Logger
}

// NewStatusPoller creates a poller.
func NewStatusPoller(opts PollerOptions) *StatusPoller {
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 100
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &StatusPoller{checker: opts.Checker, interval: interval, batchSize: batch, logger: logger}
}

// Run polls until ctx is done.
func (p *StatusPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce checks each pending swap once and returns how many reached a
// terminal state.
func (p *StatusPoller) PollOnce(ctx context.Context) int {
	pending, err := p.checker.Pending(ctx, p.batchSize)
	if err != nil {
		p.logger.Printf("list pending swaps: %v", err)
		return 0
	}
	observability.UpdatePendingSwaps(len(pending))

	settled := 0
	for _, tx := range pending {
		if ctx.Err() != nil {
			break
		}
		res := p.checker.CheckStatus(ctx, tx.ShiftID)
		switch {
		case res.Error != "":
			p.logger.Printf("status %s: %s", tx.ShiftID, res.Error)
		case res.Completed || res.Failed:
			settled++
			p.logger.Printf("swap %s %s -> %s is %s", tx.ShiftID, tx.FromToken, tx.ToToken, res.Status)
		}
	}
	if settled > 0 {
		observability.UpdatePendingSwaps(len(pending) - settled)
	}
	observability.RecordPoll()
	return settled
}
