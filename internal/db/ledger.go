package db

import (
	"context"

	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/notify"
)

// Ledger is the durable set of processed correlation ids. Both entry
// points (HTTP and queue) consult it, so a request submitted via the
// API and later redelivered via the queue is deduplicated by
// correlation id alone.
type Ledger struct {
	db     *DB
	logger *zap.Logger
}

// NewLedger creates a postgres-backed idempotency ledger.
func NewLedger(db *DB, logger *zap.Logger) *Ledger {
	return &Ledger{
		db:     db,
		logger: logger,
	}
}

// Seen reports whether the correlation id was already marked processed.
func (l *Ledger) Seen(ctx context.Context, correlationID string) (bool, error) {
	var seen bool
	err := l.db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_messages WHERE correlation_id = $1)`,
		correlationID,
	).Scan(&seen)
	if err != nil {
		return false, &notify.InfrastructureError{Op: "ledger lookup", Err: err}
	}
	return seen, nil
}

// MarkSeen records the correlation id. Insert-or-ignore: concurrent
// duplicates race on the primary key and all but one are swallowed;
// the first writer wins and the rest see marked=false.
func (l *Ledger) MarkSeen(ctx context.Context, correlationID string) (bool, error) {
	result, err := l.db.Pool().Exec(ctx,
		`INSERT INTO processed_messages (correlation_id) VALUES ($1) ON CONFLICT (correlation_id) DO NOTHING`,
		correlationID,
	)
	if err != nil {
		return false, &notify.InfrastructureError{Op: "ledger mark", Err: err}
	}

	marked := result.RowsAffected() > 0
	if !marked {
		l.logger.Debug("correlation id already marked processed",
			zap.String("correlation_id", correlationID),
		)
	}
	return marked, nil
}
