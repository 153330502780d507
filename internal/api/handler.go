package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/db"
	"github.com/vibesoft/herald/internal/notify"
)

// Submitter accepts requests for processing. Implemented by the engine
// worker pool.
type Submitter interface {
	Submit(ctx context.Context, req *notify.Request) (*db.NotificationLog, bool, error)
	SubmitAndWait(ctx context.Context, req *notify.Request) (*db.NotificationLog, *notify.Result, bool, error)
}

// LogReader serves status queries.
type LogReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*db.NotificationLog, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*db.NotificationLog, error)
}

// SendResponse is returned from the send endpoint. Outcome is the
// caller-facing verdict (ACCEPTED, SUCCESS, ERROR, TIMEOUT,
// ALREADY_PROCESSED); only terminal outcomes carry an error message.
type SendResponse struct {
	ID           string `json:"id,omitempty"`
	TraceID      string `json:"trace_id"`
	Outcome      string `json:"outcome"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger    *zap.Logger
	submitter Submitter
	logs      LogReader
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, submitter Submitter, logs LogReader) *Handler {
	return &Handler{
		logger:    logger,
		submitter: submitter,
		logs:      logs,
	}
}

// SendNotification handles POST /api/v1/notifications/send.
//
// The default is asynchronous: the request is accepted, a PENDING log
// row is created, and 202 comes back immediately. With ?sync=true the
// handler waits for the terminal result up to a fixed ceiling and then
// reports TIMEOUT; processing is never cancelled by the wait expiring.
func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req notify.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	req.CorrelationID = r.Header.Get("X-Correlation-ID")
	req.ClientID = r.Header.Get("X-Client-ID")

	sync := r.URL.Query().Get("sync") == "true"

	if !sync {
		log, duplicate, err := h.submitter.Submit(ctx, &req)
		if err != nil {
			h.writeSubmitError(w, err)
			return
		}
		if duplicate {
			h.writeJSON(w, http.StatusOK, SendResponse{
				TraceID: req.CorrelationID,
				Outcome: notify.OutcomeAlreadyProcessed,
			})
			return
		}
		h.writeJSON(w, http.StatusAccepted, SendResponse{
			ID:      log.ID.String(),
			TraceID: log.CorrelationID,
			Outcome: notify.OutcomeAccepted,
		})
		return
	}

	log, result, duplicate, err := h.submitter.SubmitAndWait(ctx, &req)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}
	if duplicate {
		h.writeJSON(w, http.StatusOK, SendResponse{
			TraceID: req.CorrelationID,
			Outcome: notify.OutcomeAlreadyProcessed,
		})
		return
	}

	resp := SendResponse{
		ID:      log.ID.String(),
		TraceID: log.CorrelationID,
	}
	switch {
	case result == nil:
		resp.Outcome = notify.OutcomeTimeout
	case result.Success():
		resp.Outcome = string(notify.StatusSuccess)
	default:
		resp.Outcome = notify.OutcomeError
		resp.ErrorMessage = result.ErrorMessage
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetNotification handles GET /api/v1/notifications/{id}
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	logID, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid notification ID", "ID must be a valid UUID")
		return
	}

	log, err := h.logs.GetByID(ctx, logID)
	if err != nil {
		if errors.Is(err, db.ErrLogNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Notification not found", "")
			return
		}
		h.logger.Error("failed to get notification",
			zap.Error(err),
			zap.String("id", idStr),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get notification", "")
		return
	}

	h.writeJSON(w, http.StatusOK, log)
}

// GetNotificationByTrace handles GET /api/v1/notifications/trace/{traceID}
func (h *Handler) GetNotificationByTrace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	traceID := chi.URLParam(r, "traceID")
	if traceID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing trace ID", "")
		return
	}

	log, err := h.logs.GetByCorrelationID(ctx, traceID)
	if err != nil {
		if errors.Is(err, db.ErrLogNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Notification not found", "")
			return
		}
		h.logger.Error("failed to get notification by trace id",
			zap.Error(err),
			zap.String("trace_id", traceID),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get notification", "")
		return
	}

	h.writeJSON(w, http.StatusOK, log)
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, err error) {
	var vErr *notify.ValidationError
	if errors.As(err, &vErr) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request", vErr.Error())
		return
	}

	h.logger.Error("failed to accept notification", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to accept notification", "")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
