package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/notify"
)

// ledgerTTL bounds ledger growth. Correlation ids older than this can
// no longer be deduplicated; pick a horizon well past any realistic
// broker redelivery window.
const ledgerTTL = 7 * 24 * time.Hour

// Ledger is a Redis-backed idempotency ledger. SET NX gives the same
// atomic check-then-mark guarantee as the postgres insert-or-ignore
// variant: exactly one concurrent caller observes marked=true.
type Ledger struct {
	client *Client
	logger *zap.Logger
}

// NewLedger creates a Redis-backed idempotency ledger.
func NewLedger(client *Client, logger *zap.Logger) *Ledger {
	return &Ledger{
		client: client,
		logger: logger,
	}
}

func ledgerKey(correlationID string) string {
	return "processed:" + correlationID
}

// Seen reports whether the correlation id was already marked processed.
func (l *Ledger) Seen(ctx context.Context, correlationID string) (bool, error) {
	n, err := l.client.rdb.Exists(ctx, ledgerKey(correlationID)).Result()
	if err != nil {
		return false, &notify.InfrastructureError{Op: "ledger lookup", Err: fmt.Errorf("redis exists: %w", err)}
	}
	return n > 0, nil
}

// MarkSeen records the correlation id atomically. Returns false when
// another caller already holds the mark.
func (l *Ledger) MarkSeen(ctx context.Context, correlationID string) (bool, error) {
	marked, err := l.client.rdb.SetNX(ctx, ledgerKey(correlationID), "1", ledgerTTL).Result()
	if err != nil {
		return false, &notify.InfrastructureError{Op: "ledger mark", Err: fmt.Errorf("redis setnx: %w", err)}
	}

	if !marked {
		l.logger.Debug("correlation id already marked processed",
			zap.String("correlation_id", correlationID),
		)
	}
	return marked, nil
}
