package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/metrics"
	"github.com/vibesoft/herald/internal/notify"
)

// RetryPolicy retries a failing operation with exponential backoff.
// A non-retryable error (validation, permanent provider rejection)
// aborts the chain immediately.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	Retryable    func(error) bool
	Logger       *zap.Logger
}

// DefaultRetryPolicy matches the queue's delivery guarantees: four
// attempts at 1s, 2s, 4s spacing, classified by the shared error
// taxonomy.
func DefaultRetryPolicy(logger *zap.Logger) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  4,
		InitialDelay: time.Second,
		Multiplier:   2,
		Retryable:    notify.Retryable,
		Logger:       logger,
	}
}

// Execute runs fn until it succeeds, exhausts MaxAttempts, hits a
// non-retryable error, or the context is cancelled. Returns the last
// error observed.
func (p RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			p.Logger.Warn("non-retryable error, aborting retry chain",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			return lastErr
		}

		if attempt == p.MaxAttempts {
			break
		}

		p.Logger.Warn("attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		metrics.RecordRetryAttempt()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}

	return lastErr
}
