package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/notify"
)

// ErrLogNotFound is returned when a notification log lookup misses.
var ErrLogNotFound = errors.New("notification log not found")

// LogRepository handles database operations for notification logs
type LogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewLogRepository creates a new notification log repository
func NewLogRepository(db *DB, logger *zap.Logger) *LogRepository {
	return &LogRepository{
		db:     db,
		logger: logger,
	}
}

// CreatePending inserts a new log row in PENDING state.
func (r *LogRepository) CreatePending(ctx context.Context, log *NotificationLog) error {
	query := `
		INSERT INTO notification_logs (
			id, correlation_id, slug, language, channel,
			recipient, variables, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING created_at, updated_at
	`

	log.Status = notify.StatusPending

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		log.ID,
		log.CorrelationID,
		log.Slug,
		log.Language,
		log.Channel,
		log.Recipient,
		log.Variables,
		log.Status,
	).Scan(&log.CreatedAt, &log.UpdatedAt)

	if err != nil {
		r.logger.Error("failed to create notification log",
			zap.Error(err),
			zap.String("log_id", log.ID.String()),
			zap.String("correlation_id", log.CorrelationID),
		)
		return &notify.InfrastructureError{Op: "insert notification log", Err: err}
	}

	return nil
}

// MarkSuccess transitions a PENDING log to SUCCESS and stamps sent_at.
// A log that already reached a terminal state is left untouched.
func (r *LogRepository) MarkSuccess(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notification_logs
		SET status = $1, error_message = NULL, sent_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.db.Pool().Exec(ctx, query, notify.StatusSuccess, id, notify.StatusPending)
	if err != nil {
		return &notify.InfrastructureError{Op: "mark notification success", Err: err}
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("log %s not pending: %w", id, ErrLogNotFound)
	}

	r.logger.Info("notification marked as sent", zap.String("log_id", id.String()))
	return nil
}

// MarkFailed transitions a PENDING log to FAILED with the captured error.
func (r *LogRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE notification_logs
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.Pool().Exec(ctx, query, notify.StatusFailed, errMsg, id, notify.StatusPending)
	if err != nil {
		return &notify.InfrastructureError{Op: "mark notification failed", Err: err}
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("log %s not pending: %w", id, ErrLogNotFound)
	}

	r.logger.Error("notification marked as failed",
		zap.String("log_id", id.String()),
		zap.String("error", errMsg),
	)
	return nil
}

// GetByID retrieves a notification log by internal id
func (r *LogRepository) GetByID(ctx context.Context, id uuid.UUID) (*NotificationLog, error) {
	query := `
		SELECT
			id, correlation_id, slug, language, channel, recipient,
			variables, status, error_message, sent_at, created_at, updated_at
		FROM notification_logs
		WHERE id = $1
	`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, id))
}

// GetByCorrelationID retrieves the log created for a correlation id.
func (r *LogRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*NotificationLog, error) {
	query := `
		SELECT
			id, correlation_id, slug, language, channel, recipient,
			variables, status, error_message, sent_at, created_at, updated_at
		FROM notification_logs
		WHERE correlation_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, correlationID))
}

func (r *LogRepository) scanOne(row pgx.Row) (*NotificationLog, error) {
	var log NotificationLog
	err := row.Scan(
		&log.ID,
		&log.CorrelationID,
		&log.Slug,
		&log.Language,
		&log.Channel,
		&log.Recipient,
		&log.Variables,
		&log.Status,
		&log.ErrorMessage,
		&log.SentAt,
		&log.CreatedAt,
		&log.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLogNotFound
	}
	if err != nil {
		return nil, &notify.InfrastructureError{Op: "query notification log", Err: err}
	}

	return &log, nil
}

// MarkStalePendingFailed fails every PENDING log older than the cutoff.
// Backstop for workers that died mid-processing; returns the ids swept.
func (r *LogRepository) MarkStalePendingFailed(ctx context.Context, olderThan int) ([]uuid.UUID, error) {
	query := `
		UPDATE notification_logs
		SET status = $1, error_message = 'processing abandoned: worker did not complete', updated_at = NOW()
		WHERE status = $2 AND created_at < NOW() - make_interval(secs => $3)
		RETURNING id
	`

	rows, err := r.db.Pool().Query(ctx, query, notify.StatusFailed, notify.StatusPending, olderThan)
	if err != nil {
		return nil, &notify.InfrastructureError{Op: "sweep stale pending logs", Err: err}
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan swept log id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
