package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/notify"
	"github.com/vibesoft/herald/internal/watzap"
)

// ChatClient is the provider capability the chat sender needs.
type ChatClient interface {
	SendText(ctx context.Context, phoneNumber, message string) error
	SendImage(ctx context.Context, phoneNumber, imageURL, caption string) error
}

// WatzapSender delivers the CHAT channel through the Watzap WhatsApp
// API. TEXT templates go out as plain messages; IMAGE templates as an
// image URL with the rendered body as caption.
type WatzapSender struct {
	client ChatClient
	logger *zap.Logger
}

// NewWatzapSender creates a chat sender over the given provider client.
func NewWatzapSender(client ChatClient, logger *zap.Logger) *WatzapSender {
	return &WatzapSender{
		client: client,
		logger: logger,
	}
}

// Send sends the rendered delivery according to its template type.
func (s *WatzapSender) Send(ctx context.Context, d *Delivery) error {
	if d.Channel != notify.ChannelChat {
		return &notify.DispatchError{
			Provider: "watzap",
			Err:      fmt.Errorf("watzap sender only supports CHAT, got %q", d.Channel),
		}
	}

	var err error
	switch d.Template.Type {
	case notify.TypeText:
		err = s.client.SendText(ctx, d.Recipient, d.Body)
	case notify.TypeImage:
		if d.Template.ImageURL == nil || *d.Template.ImageURL == "" {
			return &notify.DispatchError{
				Provider: "watzap",
				Err:      fmt.Errorf("image template %q has no image url", d.Template.Slug),
			}
		}
		err = s.client.SendImage(ctx, d.Recipient, *d.Template.ImageURL, d.Body)
	default:
		return &notify.DispatchError{
			Provider: "watzap",
			Err:      fmt.Errorf("unsupported template type %q", d.Template.Type),
		}
	}

	if err != nil {
		return wrapWatzapError(err)
	}

	s.logger.Info("chat message sent",
		zap.String("recipient", d.Recipient),
		zap.String("slug", d.Template.Slug),
		zap.String("type", string(d.Template.Type)),
	)
	return nil
}

// SupportsChannel reports whether this sender covers the channel.
func (s *WatzapSender) SupportsChannel(channel notify.Channel) bool {
	return channel == notify.ChannelChat
}

// wrapWatzapError folds provider errors into the uniform dispatch error,
// preserving the HTTP status for the queue boundary's retry classifier.
func wrapWatzapError(err error) error {
	var apiErr *watzap.APIError
	if errors.As(err, &apiErr) {
		return &notify.DispatchError{
			Provider:   "watzap",
			StatusCode: apiErr.StatusCode,
			Err:        err,
		}
	}
	return &notify.DispatchError{Provider: "watzap", Err: err}
}
