package dispatch

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/db"
	"github.com/vibesoft/herald/internal/notify"
)

type stubSender struct {
	channel notify.Channel
	sent    []*Delivery
	err     error
}

func (s *stubSender) Send(ctx context.Context, d *Delivery) error {
	s.sent = append(s.sent, d)
	return s.err
}

func (s *stubSender) SupportsChannel(channel notify.Channel) bool {
	return channel == s.channel
}

func textDelivery(channel notify.Channel) *Delivery {
	return &Delivery{
		Channel:   channel,
		Recipient: "user@example.com",
		Template: &db.Template{
			Slug:    "welcome",
			Type:    notify.TypeText,
			Content: "Welcome!",
		},
		Body: "Welcome!",
	}
}

func TestRouter_RoutesByChannel(t *testing.T) {
	email := &stubSender{channel: notify.ChannelEmail}
	chat := &stubSender{channel: notify.ChannelChat}
	router := NewRouter(zap.NewNop(), email, chat)

	if err := router.Dispatch(context.Background(), textDelivery(notify.ChannelChat)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(email.sent) != 0 {
		t.Error("email sender must not receive chat deliveries")
	}
	if len(chat.sent) != 1 {
		t.Fatalf("chat sender received %d deliveries", len(chat.sent))
	}
}

func TestRouter_UnsupportedChannel(t *testing.T) {
	router := NewRouter(zap.NewNop(), &stubSender{channel: notify.ChannelEmail})

	err := router.Dispatch(context.Background(), textDelivery(notify.ChannelChat))

	var dErr *notify.DispatchError
	if !errors.As(err, &dErr) {
		t.Fatalf("expected DispatchError, got %v", err)
	}
	if dErr.Provider != "router" {
		t.Errorf("unexpected provider: %s", dErr.Provider)
	}
}

func TestRouter_SenderErrorPropagates(t *testing.T) {
	boom := &notify.DispatchError{Provider: "ses", StatusCode: 500, Err: errors.New("throttled")}
	router := NewRouter(zap.NewNop(), &stubSender{channel: notify.ChannelEmail, err: boom})

	err := router.Dispatch(context.Background(), textDelivery(notify.ChannelEmail))
	if !errors.Is(err, boom) && err != boom {
		t.Fatalf("sender error not propagated: %v", err)
	}
}

func TestRouter_SupportsChannel(t *testing.T) {
	router := NewRouter(zap.NewNop(), &stubSender{channel: notify.ChannelEmail})

	if !router.SupportsChannel(notify.ChannelEmail) {
		t.Error("EMAIL should be supported")
	}
	if router.SupportsChannel(notify.ChannelChat) {
		t.Error("CHAT should not be supported")
	}
}

func TestLogSender_AcceptsBothChannels(t *testing.T) {
	sender := NewLogSender(zap.NewNop())

	if !sender.SupportsChannel(notify.ChannelEmail) || !sender.SupportsChannel(notify.ChannelChat) {
		t.Error("log sender should cover both channels")
	}
	if err := sender.Send(context.Background(), textDelivery(notify.ChannelChat)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
