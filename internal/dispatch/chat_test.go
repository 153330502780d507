package dispatch

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/db"
	"github.com/vibesoft/herald/internal/notify"
	"github.com/vibesoft/herald/internal/watzap"
)

type fakeChatClient struct {
	texts  []sentText
	images []sentImage
	err    error
}

type sentText struct {
	phone, message string
}

type sentImage struct {
	phone, imageURL, caption string
}

func (f *fakeChatClient) SendText(ctx context.Context, phoneNumber, message string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, sentText{phoneNumber, message})
	return nil
}

func (f *fakeChatClient) SendImage(ctx context.Context, phoneNumber, imageURL, caption string) error {
	if f.err != nil {
		return f.err
	}
	f.images = append(f.images, sentImage{phoneNumber, imageURL, caption})
	return nil
}

func chatDelivery(tplType notify.TemplateType, imageURL *string) *Delivery {
	return &Delivery{
		Channel:   notify.ChannelChat,
		Recipient: "6281234567890",
		Template: &db.Template{
			Slug:     "welcome",
			Language: "en",
			Channel:  notify.ChannelChat,
			Type:     tplType,
			Content:  "Welcome, {{.name}}!",
			ImageURL: imageURL,
		},
		Body: "Welcome, Ada!",
	}
}

func TestWatzapSender_TextTemplate(t *testing.T) {
	client := &fakeChatClient{}
	sender := NewWatzapSender(client, zap.NewNop())

	err := sender.Send(context.Background(), chatDelivery(notify.TypeText, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.texts) != 1 {
		t.Fatalf("expected 1 text message, got %d", len(client.texts))
	}
	if client.texts[0].phone != "6281234567890" {
		t.Errorf("wrong recipient: %s", client.texts[0].phone)
	}
	if client.texts[0].message != "Welcome, Ada!" {
		t.Errorf("wrong message: %s", client.texts[0].message)
	}
	if len(client.images) != 0 {
		t.Error("text template must not send an image")
	}
}

func TestWatzapSender_ImageTemplate(t *testing.T) {
	client := &fakeChatClient{}
	sender := NewWatzapSender(client, zap.NewNop())

	url := "https://cdn.example.com/banner.png"
	err := sender.Send(context.Background(), chatDelivery(notify.TypeImage, &url))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.images) != 1 {
		t.Fatalf("expected 1 image message, got %d", len(client.images))
	}
	got := client.images[0]
	if got.imageURL != url {
		t.Errorf("wrong image url: %s", got.imageURL)
	}
	if got.caption != "Welcome, Ada!" {
		t.Errorf("rendered body must become the caption, got %s", got.caption)
	}
}

func TestWatzapSender_ImageTemplateWithoutURL(t *testing.T) {
	sender := NewWatzapSender(&fakeChatClient{}, zap.NewNop())

	for _, url := range []*string{nil, ptr("")} {
		err := sender.Send(context.Background(), chatDelivery(notify.TypeImage, url))

		var dErr *notify.DispatchError
		if !errors.As(err, &dErr) {
			t.Fatalf("expected DispatchError, got %v", err)
		}
		if dErr.Provider != "watzap" {
			t.Errorf("unexpected provider: %s", dErr.Provider)
		}
	}
}

func TestWatzapSender_WrongChannelRejected(t *testing.T) {
	sender := NewWatzapSender(&fakeChatClient{}, zap.NewNop())

	d := chatDelivery(notify.TypeText, nil)
	d.Channel = notify.ChannelEmail

	var dErr *notify.DispatchError
	if err := sender.Send(context.Background(), d); !errors.As(err, &dErr) {
		t.Fatalf("expected DispatchError, got %v", err)
	}
}

func TestWatzapSender_APIErrorKeepsStatusCode(t *testing.T) {
	client := &fakeChatClient{err: &watzap.APIError{StatusCode: 503, Body: "unavailable"}}
	sender := NewWatzapSender(client, zap.NewNop())

	err := sender.Send(context.Background(), chatDelivery(notify.TypeText, nil))

	var dErr *notify.DispatchError
	if !errors.As(err, &dErr) {
		t.Fatalf("expected DispatchError, got %v", err)
	}
	if dErr.StatusCode != 503 {
		t.Errorf("status code lost: %d", dErr.StatusCode)
	}
	if !notify.Retryable(err) {
		t.Error("503 from the provider must be retryable")
	}
}

func TestWatzapSender_PlainErrorWrapped(t *testing.T) {
	client := &fakeChatClient{err: errors.New("connection reset")}
	sender := NewWatzapSender(client, zap.NewNop())

	err := sender.Send(context.Background(), chatDelivery(notify.TypeText, nil))

	var dErr *notify.DispatchError
	if !errors.As(err, &dErr) {
		t.Fatalf("expected DispatchError, got %v", err)
	}
	if dErr.StatusCode != 0 {
		t.Errorf("plain errors must not carry a status code, got %d", dErr.StatusCode)
	}
}

func TestWatzapSender_SupportsChannel(t *testing.T) {
	sender := NewWatzapSender(&fakeChatClient{}, zap.NewNop())

	if !sender.SupportsChannel(notify.ChannelChat) {
		t.Error("CHAT should be supported")
	}
	if sender.SupportsChannel(notify.ChannelEmail) {
		t.Error("EMAIL should not be supported")
	}
}

func ptr(s string) *string { return &s }
