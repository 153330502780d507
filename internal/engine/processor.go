// Package engine implements the notification processing core: intake
// with idempotency, template resolution and rendering, channel
// dispatch, and terminal status bookkeeping.
package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/db"
	"github.com/vibesoft/herald/internal/dispatch"
	"github.com/vibesoft/herald/internal/metrics"
	"github.com/vibesoft/herald/internal/notify"
	"github.com/vibesoft/herald/internal/template"
)

// LogStore persists notification log rows.
type LogStore interface {
	CreatePending(ctx context.Context, log *db.NotificationLog) error
	MarkSuccess(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// LedgerStore is the processed-message ledger. Seen/MarkSeen must be
// backed by an atomic first-writer-wins primitive.
type LedgerStore interface {
	Seen(ctx context.Context, correlationID string) (bool, error)
	MarkSeen(ctx context.Context, correlationID string) (bool, error)
}

// TemplateResolver resolves a template with language fallback.
type TemplateResolver interface {
	Resolve(ctx context.Context, slug, language string, channel notify.Channel) (*db.Template, error)
}

// Dispatcher hands a rendered delivery to its channel's provider.
type Dispatcher interface {
	Dispatch(ctx context.Context, d *dispatch.Delivery) error
}

// StatusPublisher emits lifecycle events. Implementations must never
// let a publish failure escape.
type StatusPublisher interface {
	PublishSafely(ctx context.Context, event notify.StatusEvent)
}

// Processor runs one notification through its full lifecycle. It is
// shared by the HTTP gateway (via the async pool) and the queue
// consumer (under its retry policy).
type Processor struct {
	logs      LogStore
	ledger    LedgerStore
	resolver  TemplateResolver
	renderer  *template.Renderer
	router    Dispatcher
	publisher StatusPublisher
	logger    *zap.Logger
}

// NewProcessor wires the processing core.
func NewProcessor(
	logs LogStore,
	ledger LedgerStore,
	resolver TemplateResolver,
	renderer *template.Renderer,
	router Dispatcher,
	publisher StatusPublisher,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		logs:      logs,
		ledger:    ledger,
		resolver:  resolver,
		renderer:  renderer,
		router:    router,
		publisher: publisher,
		logger:    logger,
	}
}

// Intake validates the request, deduplicates it against the ledger,
// and creates the PENDING log row. Returns duplicate=true when the
// correlation id was already processed; no row is created in that
// case. A request without a correlation id gets a fresh one and is
// never a duplicate.
func (p *Processor) Intake(ctx context.Context, req *notify.Request) (*db.NotificationLog, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	if req.CorrelationID == "" {
		req.CorrelationID = uuid.New().String()
	} else {
		marked, err := p.ledger.MarkSeen(ctx, req.CorrelationID)
		if err != nil {
			return nil, false, err
		}
		if !marked {
			p.logger.Info("duplicate request short-circuited",
				zap.String("correlation_id", req.CorrelationID),
			)
			metrics.RecordIdempotencyHit()
			return nil, true, nil
		}
	}

	variables, err := json.Marshal(req.Variables)
	if err != nil {
		return nil, false, &notify.ValidationError{Field: "variables", Message: "variables must be JSON-encodable"}
	}

	log := &db.NotificationLog{
		ID:            uuid.New(),
		CorrelationID: req.CorrelationID,
		Slug:          req.Slug,
		Language:      req.Language,
		Channel:       req.Channel,
		Recipient:     req.Recipient,
		Variables:     variables,
	}
	if err := p.logs.CreatePending(ctx, log); err != nil {
		return nil, false, err
	}

	metrics.RecordNotificationAccepted(string(req.Channel))
	p.logger.Info("notification accepted",
		zap.String("log_id", log.ID.String()),
		zap.String("correlation_id", req.CorrelationID),
		zap.String("slug", req.Slug),
		zap.String("channel", string(req.Channel)),
	)
	return log, false, nil
}

// Deliver resolves, renders, and dispatches the notification. Errors
// come back classified (NotFoundError, RenderingError, DispatchError)
// so callers can decide retryability.
func (p *Processor) Deliver(ctx context.Context, req *notify.Request) error {
	tpl, err := p.resolver.Resolve(ctx, req.Slug, req.Language, req.Channel)
	if err != nil {
		return err
	}

	subject, err := p.renderer.RenderOptional(tpl.Subject, req.Variables)
	if err != nil {
		return err
	}
	body, err := p.renderer.Render(tpl.Content, req.Variables)
	if err != nil {
		return err
	}

	return p.router.Dispatch(ctx, &dispatch.Delivery{
		Channel:   req.Channel,
		Recipient: req.Recipient,
		Template:  tpl,
		Subject:   subject,
		Body:      body,
	})
}

// Finish records the terminal state for a delivery attempt and
// publishes the matching status event. Exactly one terminal
// transition per log row; a row already out of PENDING is left alone.
func (p *Processor) Finish(ctx context.Context, log *db.NotificationLog, req *notify.Request, deliverErr error) notify.Result {
	if deliverErr == nil {
		if err := p.logs.MarkSuccess(ctx, log.ID); err != nil {
			p.logger.Error("failed to mark notification success",
				zap.String("log_id", log.ID.String()),
				zap.Error(err),
			)
		}
		metrics.RecordNotificationProcessed(string(notify.StatusSuccess), string(log.Channel))
		metrics.RecordNotificationLatency(string(log.Channel), time.Since(log.CreatedAt))
		p.publisher.PublishSafely(ctx, notify.SuccessEvent(log.CorrelationID, log.Channel, req.ClientID))
		return notify.Result{Status: notify.StatusSuccess}
	}

	errMsg := deliverErr.Error()
	if err := p.logs.MarkFailed(ctx, log.ID, errMsg); err != nil {
		p.logger.Error("failed to mark notification failed",
			zap.String("log_id", log.ID.String()),
			zap.Error(err),
		)
	}
	metrics.RecordNotificationProcessed(string(notify.StatusFailed), string(log.Channel))
	metrics.RecordNotificationLatency(string(log.Channel), time.Since(log.CreatedAt))
	p.publisher.PublishSafely(ctx, notify.FailureEvent(log.CorrelationID, log.Channel, errMsg, req.ClientID))
	return notify.Result{Status: notify.StatusFailed, ErrorMessage: errMsg}
}

// Process runs Deliver and Finish for an already-accepted request.
func (p *Processor) Process(ctx context.Context, log *db.NotificationLog, req *notify.Request) notify.Result {
	return p.Finish(ctx, log, req, p.Deliver(ctx, req))
}
