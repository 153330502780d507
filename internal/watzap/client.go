// Package watzap is a client for the Watzap.id WhatsApp HTTP API.
package watzap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Config holds Watzap API credentials and connection settings.
type Config struct {
	BaseURL   string
	APIKey    string
	NumberKey string
	Timeout   time.Duration
}

// Response is the Watzap API response envelope.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Ack     string `json:"ack"`
}

// Success reports whether the provider accepted the message.
func (r Response) Success() bool {
	return r.Status == "200" || r.Ack == "successfully"
}

// APIError carries the provider HTTP status so the caller can separate
// client errors from transient failures.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("watzap api error: status %d: %s", e.StatusCode, e.Body)
}

// Client calls the Watzap send endpoints.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *zap.Logger
}

// New creates a Watzap client.
func New(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// SendText sends a plain text message to a WhatsApp recipient.
func (c *Client) SendText(ctx context.Context, phoneNumber, message string) error {
	body := map[string]any{
		"api_key":         c.cfg.APIKey,
		"number_key":      c.cfg.NumberKey,
		"phone_no":        phoneNumber,
		"message":         message,
		"wait_until_send": "1",
	}
	return c.post(ctx, "/send_message", body)
}

// SendImage sends an image with a caption to a WhatsApp recipient.
func (c *Client) SendImage(ctx context.Context, phoneNumber, imageURL, caption string) error {
	body := map[string]any{
		"api_key":          c.cfg.APIKey,
		"number_key":       c.cfg.NumberKey,
		"phone_no":         phoneNumber,
		"url":              imageURL,
		"message":          caption,
		"separate_caption": "0",
		"wait_until_send":  "1",
	}
	return c.post(ctx, "/send_image_url", body)
}

func (c *Client) post(ctx context.Context, endpoint string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal watzap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build watzap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("watzap request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("decode watzap response: %w", err)
	}

	if !parsed.Success() {
		return &APIError{StatusCode: resp.StatusCode, Body: parsed.Message}
	}

	c.logger.Debug("watzap message accepted",
		zap.String("endpoint", endpoint),
		zap.String("ack", parsed.Ack),
	)
	return nil
}
