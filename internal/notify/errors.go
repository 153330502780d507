package notify

import (
	"errors"
	"fmt"
)

// ValidationError indicates a malformed or incomplete request. Never
// retried on any path.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError indicates a template absent after the language fallback.
// Retryable at the queue boundary, terminal FAILED at the orchestrator.
type NotFoundError struct {
	Slug     string
	Language string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template '%s' not found for language '%s' (fallback '%s' included)",
		e.Slug, e.Language, DefaultLanguage)
}

// RenderingError wraps a template-engine failure.
type RenderingError struct {
	Err error
}

func (e *RenderingError) Error() string {
	return fmt.Sprintf("template rendering failed: %v", e.Err)
}

func (e *RenderingError) Unwrap() error { return e.Err }

// DispatchError wraps a delivery-provider failure uniformly so the
// orchestrator does not need provider specifics. StatusCode is the
// provider HTTP status when known, 0 otherwise.
type DispatchError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s dispatch failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s dispatch failed: %v", e.Provider, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Retryable reports whether the provider failure is worth retrying:
// client errors (4xx) are permanently invalid, everything else
// (5xx, timeouts, connection failures) is transient.
func (e *DispatchError) Retryable() bool {
	return e.StatusCode < 400 || e.StatusCode >= 500
}

// InfrastructureError indicates the ledger or state store is
// unavailable. Propagated, not masked.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// Retryable classifies an error for the queue-boundary retry policy.
// Validation failures and provider client errors are permanent; template
// lookups, infrastructure failures, and anything unidentified are
// assumed transient.
func Retryable(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Retryable()
	}
	return true
}
