// Package notify holds the domain types shared by the gateway, the
// queue consumer, and the processing engine.
package notify

import (
	"time"
)

// Channel is the delivery medium for a notification.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelChat  Channel = "CHAT"
)

// Valid reports whether the channel is one this system can dispatch.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelChat
}

// Status is the lifecycle state of a notification log entry.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"

	// StatusRetryExhausted appears only on outbound status events,
	// never on a persisted log row.
	StatusRetryExhausted Status = "RETRY_EXHAUSTED"
)

// Synchronous-caller outcomes. These are reported on API responses but
// are never written to the notification log.
const (
	OutcomeAccepted         = "ACCEPTED"
	OutcomeTimeout          = "TIMEOUT"
	OutcomeError            = "ERROR"
	OutcomeAlreadyProcessed = "ALREADY_PROCESSED"
)

// TemplateType distinguishes plain-text templates from image templates
// (chat channel only; email always sends subject + body).
type TemplateType string

const (
	TypeText  TemplateType = "TEXT"
	TypeImage TemplateType = "IMAGE"
)

// DefaultLanguage is the fixed fallback language for template resolution.
const DefaultLanguage = "en"

// Request is a caller-constructed notification request. CorrelationID is
// optional on the HTTP path and mandatory on the queue path; ClientID is
// an optional routing tag for status events.
type Request struct {
	Recipient     string         `json:"recipient"`
	Slug          string         `json:"slug"`
	Language      string         `json:"language"`
	Channel       Channel        `json:"channel"`
	Variables     map[string]any `json:"variables"`
	CorrelationID string         `json:"-"`
	ClientID      string         `json:"-"`
}

// Validate checks the structural invariants of a request.
func (r *Request) Validate() error {
	if r.Recipient == "" {
		return &ValidationError{Field: "recipient", Message: "recipient is required"}
	}
	if r.Slug == "" {
		return &ValidationError{Field: "slug", Message: "slug is required"}
	}
	if r.Language == "" {
		return &ValidationError{Field: "language", Message: "language is required"}
	}
	if r.Channel == "" {
		return &ValidationError{Field: "channel", Message: "channel is required"}
	}
	if !r.Channel.Valid() {
		return &ValidationError{Field: "channel", Message: "channel must be EMAIL or CHAT"}
	}
	return nil
}

// Result is the terminal outcome of one processing pass.
type Result struct {
	Status       Status
	ErrorMessage string
}

// Success reports whether processing reached SUCCESS.
func (r Result) Success() bool {
	return r.Status == StatusSuccess
}

// StatusEvent is published to the status exchange once per terminal
// outcome (or once per exhausted retry chain).
type StatusEvent struct {
	TraceID      string    `json:"trace_id"`
	Status       Status    `json:"status"`
	Channel      Channel   `json:"channel"`
	ErrorMessage *string   `json:"error_message"`
	ClientID     *string   `json:"client_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// SuccessEvent builds a SUCCESS status event.
func SuccessEvent(traceID string, channel Channel, clientID string) StatusEvent {
	return newEvent(traceID, StatusSuccess, channel, "", clientID)
}

// FailureEvent builds a FAILED status event carrying the root cause.
func FailureEvent(traceID string, channel Channel, errMsg, clientID string) StatusEvent {
	return newEvent(traceID, StatusFailed, channel, errMsg, clientID)
}

// RetryExhaustedEvent builds the event emitted when a queue message has
// burned through all retry attempts.
func RetryExhaustedEvent(traceID string, channel Channel, errMsg, clientID string) StatusEvent {
	return newEvent(traceID, StatusRetryExhausted, channel, errMsg, clientID)
}

func newEvent(traceID string, status Status, channel Channel, errMsg, clientID string) StatusEvent {
	ev := StatusEvent{
		TraceID:   traceID,
		Status:    status,
		Channel:   channel,
		Timestamp: time.Now().UTC(),
	}
	if errMsg != "" {
		ev.ErrorMessage = &errMsg
	}
	if clientID != "" {
		ev.ClientID = &clientID
	}
	return ev
}
