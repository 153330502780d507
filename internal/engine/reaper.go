package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StaleSweeper is the repository operation the reaper drives.
type StaleSweeper interface {
	MarkStalePendingFailed(ctx context.Context, olderThanSeconds int) ([]uuid.UUID, error)
}

// Reaper periodically fails PENDING logs that outlived any plausible
// processing window. Covers workers that died between creating the row
// and reaching a terminal transition.
type Reaper struct {
	sweeper  StaleSweeper
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
}

// NewReaper creates a stale-log reaper.
func NewReaper(sweeper StaleSweeper, interval, maxAge time.Duration, logger *zap.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	return &Reaper{
		sweeper:  sweeper,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopping")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	ids, err := r.sweeper.MarkStalePendingFailed(ctx, int(r.maxAge.Seconds()))
	if err != nil {
		r.logger.Error("stale pending sweep failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}

	for _, id := range ids {
		r.logger.Warn("stale pending notification failed by reaper",
			zap.String("log_id", id.String()),
		)
	}
	r.logger.Info("stale pending sweep complete", zap.Int("swept", len(ids)))
}
