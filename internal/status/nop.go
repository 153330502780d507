package status

import (
	"context"

	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/notify"
)

// NopPublisher drops status events. Used when no status topic is
// configured; the notification log remains the source of truth.
type NopPublisher struct {
	logger *zap.Logger
}

// NewNopPublisher creates a publisher that only logs.
func NewNopPublisher(logger *zap.Logger) *NopPublisher {
	return &NopPublisher{logger: logger}
}

func (p *NopPublisher) PublishSafely(ctx context.Context, event notify.StatusEvent) {
	p.logger.Debug("status event dropped, no topic configured",
		zap.String("trace_id", event.TraceID),
		zap.String("status", string(event.Status)),
	)
}
