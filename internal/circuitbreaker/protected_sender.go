package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/dispatch"
	"github.com/vibesoft/herald/internal/notify"
)

// ProtectedSender wraps any dispatch.Sender with a CircuitBreaker.
// When the downstream provider (SES, Watzap) starts failing, the
// circuit opens and requests fail fast instead of piling up.
type ProtectedSender struct {
	sender  dispatch.Sender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedSender wraps a sender with circuit breaker protection.
func NewProtectedSender(sender dispatch.Sender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedSender {
	return &ProtectedSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

// Send attempts a delivery through the circuit breaker.
// If the circuit is open, fails fast with a DispatchError wrapping
// ErrCircuitOpen.
// If the send succeeds, records success. If it fails, records failure.
func (p *ProtectedSender) Send(ctx context.Context, d *dispatch.Delivery) error {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected request, failing fast",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("channel", string(d.Channel)),
			zap.String("state", p.breaker.GetState().String()),
		)
		// Wrapped as a DispatchError so the retry policy classifies the
		// open circuit as transient, like any other provider outage.
		return &notify.DispatchError{
			Provider: p.breaker.config.Name,
			Err:      fmt.Errorf("%w: %s sender unavailable", ErrCircuitOpen, p.breaker.config.Name),
		}
	}

	err := p.sender.Send(ctx, d)
	if err != nil {
		p.breaker.RecordFailure()
		p.logger.Debug("circuit breaker recorded failure",
			zap.String("breaker", p.breaker.config.Name),
			zap.Error(err),
		)
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// SupportsChannel delegates to the underlying sender.
func (p *ProtectedSender) SupportsChannel(channel notify.Channel) bool {
	return p.sender.SupportsChannel(channel)
}

// Breaker returns the underlying circuit breaker for metrics/monitoring.
func (p *ProtectedSender) Breaker() *CircuitBreaker {
	return p.breaker
}
