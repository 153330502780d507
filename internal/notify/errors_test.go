package notify

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryable_ValidationError(t *testing.T) {
	err := &ValidationError{Field: "recipient", Message: "recipient is required"}
	if Retryable(err) {
		t.Fatal("validation errors must not be retried")
	}
}

func TestRetryable_DispatchError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       bool
	}{
		{"bad request", 400, false},
		{"unauthorized", 401, false},
		{"not found", 404, false},
		{"rate limited", 429, false},
		{"server error", 500, true},
		{"bad gateway", 502, true},
		{"no status (connection failure)", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &DispatchError{Provider: "watzap", StatusCode: tt.statusCode, Err: errors.New("boom")}
			if got := Retryable(err); got != tt.want {
				t.Errorf("Retryable(status=%d) = %v, want %v", tt.statusCode, got, tt.want)
			}
		})
	}
}

func TestRetryable_WrappedDispatchError(t *testing.T) {
	inner := &DispatchError{Provider: "ses", StatusCode: 400, Err: errors.New("rejected")}
	wrapped := fmt.Errorf("delivery: %w", inner)
	if Retryable(wrapped) {
		t.Fatal("wrapped 4xx dispatch error must not be retried")
	}
}

func TestRetryable_DefaultTransient(t *testing.T) {
	if !Retryable(errors.New("unknown failure")) {
		t.Fatal("unidentified errors are assumed transient")
	}
	if !Retryable(&NotFoundError{Slug: "welcome", Language: "de"}) {
		t.Fatal("template lookups are retryable at the queue boundary")
	}
	if !Retryable(&InfrastructureError{Op: "ledger lookup", Err: errors.New("down")}) {
		t.Fatal("infrastructure failures are retryable")
	}
}

func TestRequest_Validate(t *testing.T) {
	valid := Request{
		Recipient: "user@example.com",
		Slug:      "welcome",
		Language:  "en",
		Channel:   ChannelEmail,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Request)
		field  string
	}{
		{"missing recipient", func(r *Request) { r.Recipient = "" }, "recipient"},
		{"missing slug", func(r *Request) { r.Slug = "" }, "slug"},
		{"missing language", func(r *Request) { r.Language = "" }, "language"},
		{"missing channel", func(r *Request) { r.Channel = "" }, "channel"},
		{"bad channel", func(r *Request) { r.Channel = "SMS" }, "channel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, vErr.Field)
			}
		})
	}
}

func TestStatusEvents(t *testing.T) {
	ev := SuccessEvent("trace-1", ChannelEmail, "client-9")
	if ev.Status != StatusSuccess || ev.TraceID != "trace-1" {
		t.Fatalf("unexpected success event: %+v", ev)
	}
	if ev.ErrorMessage != nil {
		t.Error("success event must not carry an error message")
	}
	if ev.ClientID == nil || *ev.ClientID != "client-9" {
		t.Error("client id not propagated")
	}

	ev = FailureEvent("trace-2", ChannelChat, "boom", "")
	if ev.Status != StatusFailed {
		t.Fatalf("unexpected status: %s", ev.Status)
	}
	if ev.ErrorMessage == nil || *ev.ErrorMessage != "boom" {
		t.Error("error message not propagated")
	}
	if ev.ClientID != nil {
		t.Error("empty client id must serialize as null")
	}

	ev = RetryExhaustedEvent("trace-3", ChannelChat, "gone", "client-1")
	if ev.Status != StatusRetryExhausted {
		t.Fatalf("unexpected status: %s", ev.Status)
	}
}
