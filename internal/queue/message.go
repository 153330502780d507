// Package queue implements the asynchronous intake path: the request
// queue producer and consumer, the retry policy, and dead-letter
// recovery.
package queue

import (
	"encoding/json"

	"github.com/vibesoft/herald/internal/notify"
)

// Message attribute names attached to dead-lettered messages so
// operators can see the failure without correlating logs.
const (
	AttrLastError          = "x-last-error"
	AttrLastErrorTimestamp = "x-last-error-timestamp"
	AttrOriginalQueue      = "x-original-queue"
)

// Message is the wire format on the request queue. Unlike the HTTP
// path, the trace id is mandatory here: a broker can redeliver, so
// every message must be deduplicatable.
type Message struct {
	TraceID   string         `json:"trace_id"`
	Recipient string         `json:"recipient"`
	Slug      string         `json:"slug"`
	Language  string         `json:"language"`
	Channel   notify.Channel `json:"channel"`
	Variables map[string]any `json:"variables,omitempty"`
	ClientID  string         `json:"client_id,omitempty"`
}

// Validate checks the message invariants, including the ones the HTTP
// path leaves optional.
func (m *Message) Validate() error {
	if m.TraceID == "" {
		return &notify.ValidationError{Field: "trace_id", Message: "trace_id is required on queue messages"}
	}
	return m.Request().Validate()
}

// Request converts the message into the shared request form.
func (m *Message) Request() *notify.Request {
	return &notify.Request{
		Recipient:     m.Recipient,
		Slug:          m.Slug,
		Language:      m.Language,
		Channel:       m.Channel,
		Variables:     m.Variables,
		CorrelationID: m.TraceID,
		ClientID:      m.ClientID,
	}
}

// ParseMessage decodes a queue message body.
func ParseMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, &notify.ValidationError{Field: "body", Message: "malformed message body: " + err.Error()}
	}
	return &msg, nil
}
