// Package jobs runs periodic maintenance of the ledger.
package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rental-ledger/pkg/jobmetrics"
)

const holdSweeperJob = "hold_sweeper"

// HoldExpirer releases cart holds whose expiry has passed.
type HoldExpirer interface {
	ExpireHolds(ctx context.Context) (int, error)
}

// HoldSweeper periodically releases expired cart holds so that their stock
// becomes available again.
type HoldSweeper struct {
	ledger   HoldExpirer
	interval time.Duration
	metrics  *jobmetrics.Metrics
	now      func() time.Time

	lastRun atomic.Int64
}

func NewHoldSweeper(ledger HoldExpirer, interval time.Duration, metrics *jobmetrics.Metrics) *HoldSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HoldSweeper{
		ledger:   ledger,
		interval: interval,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *HoldSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass and returns the number of released holds.
func (s *HoldSweeper) Sweep(ctx context.Context) int {
	start := s.now()
	n, err := s.ledger.ExpireHolds(ctx)
	s.metrics.Observe(holdSweeperJob, s.now().Sub(start), n, err)

	lg := zctx.From(ctx)
	if err != nil {
		if ctx.Err() == nil {
			lg.Warn("Hold sweep failed", zap.Error(err))
		}
		return 0
	}
	s.lastRun.Store(start.UnixNano())
	if n > 0 {
		lg.Info("Expired cart holds released", zap.Int("count", n))
	}
	return n
}

// LastRun is the start of the last successful sweep, zero before the first.
func (s *HoldSweeper) LastRun() time.Time {
	ns := s.lastRun.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
