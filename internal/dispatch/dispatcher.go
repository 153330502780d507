// Package dispatch routes rendered notifications to the
// channel-specific delivery providers.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/db"
	"github.com/vibesoft/herald/internal/notify"
)

// Delivery is one rendered message ready to hand to a provider.
type Delivery struct {
	Channel   notify.Channel
	Recipient string
	Template  *db.Template
	Subject   *string // rendered, nil outside the email channel
	Body      string  // rendered
}

// Sender is the unified interface for all delivery channels.
// Implementations: SESEmailSender (EMAIL), WatzapSender (CHAT).
type Sender interface {
	Send(ctx context.Context, d *Delivery) error
	SupportsChannel(channel notify.Channel) bool
}

// Router dispatches a delivery to the first sender supporting its
// channel. An unsupported channel is a dispatch failure, never a
// silent skip.
type Router struct {
	senders []Sender
	logger  *zap.Logger
}

// NewRouter creates a channel router over the given senders.
func NewRouter(logger *zap.Logger, senders ...Sender) *Router {
	return &Router{
		senders: senders,
		logger:  logger,
	}
}

// Dispatch routes the delivery to its channel's sender.
func (r *Router) Dispatch(ctx context.Context, d *Delivery) error {
	for _, sender := range r.senders {
		if sender.SupportsChannel(d.Channel) {
			r.logger.Debug("routing delivery to sender",
				zap.String("channel", string(d.Channel)),
				zap.String("recipient", d.Recipient),
			)
			return sender.Send(ctx, d)
		}
	}

	return &notify.DispatchError{
		Provider: "router",
		Err:      fmt.Errorf("no sender registered for channel %q", d.Channel),
	}
}

// SupportsChannel reports whether any registered sender covers the channel.
func (r *Router) SupportsChannel(channel notify.Channel) bool {
	for _, sender := range r.senders {
		if sender.SupportsChannel(channel) {
			return true
		}
	}
	return false
}

// LogSender logs deliveries instead of sending them (development mode).
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, d *Delivery) error {
	s.logger.Info("delivery logged (development mode)",
		zap.String("channel", string(d.Channel)),
		zap.String("recipient", d.Recipient),
		zap.String("slug", d.Template.Slug),
		zap.String("body", d.Body),
	)
	return nil
}

func (s *LogSender) SupportsChannel(channel notify.Channel) bool {
	return channel == notify.ChannelEmail || channel == notify.ChannelChat
}
