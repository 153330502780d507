package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vibesoft/herald/internal/notify"
)

// NotificationLog is the audit record for one accepted request. Created
// in PENDING state at intake and transitioned exactly once to SUCCESS
// or FAILED; never deleted.
type NotificationLog struct {
	ID            uuid.UUID          `json:"id"`
	CorrelationID string             `json:"correlation_id"`
	Slug          string             `json:"slug"`
	Language      string             `json:"language"`
	Channel       notify.Channel     `json:"channel"`
	Recipient     string             `json:"recipient"`
	Variables     json.RawMessage    `json:"variables"`
	Status        notify.Status      `json:"status"`
	ErrorMessage  *string            `json:"error_message,omitempty"`
	SentAt        *time.Time         `json:"sent_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Template is a notification template keyed by (slug, language, channel).
type Template struct {
	Slug      string              `json:"slug"`
	Language  string              `json:"language"`
	Channel   notify.Channel      `json:"channel"`
	Type      notify.TemplateType `json:"type"`
	Subject   *string             `json:"subject,omitempty"`
	Content   string              `json:"content"`
	ImageURL  *string             `json:"image_url,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}
