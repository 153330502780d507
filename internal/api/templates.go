package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/db"
	"github.com/vibesoft/herald/internal/notify"
)

// TemplateStore is the admin surface over the template table.
type TemplateStore interface {
	Get(ctx context.Context, slug, language string, channel notify.Channel) (*db.Template, error)
	Create(ctx context.Context, tpl *db.Template) error
	Update(ctx context.Context, tpl *db.Template) error
	Delete(ctx context.Context, slug, language string, channel notify.Channel) error
	List(ctx context.Context, limit, offset int) ([]*db.Template, error)
}

// TemplateHandler exposes template CRUD for operators.
type TemplateHandler struct {
	logger *zap.Logger
	store  TemplateStore
}

// NewTemplateHandler creates the template admin handler.
func NewTemplateHandler(logger *zap.Logger, store TemplateStore) *TemplateHandler {
	return &TemplateHandler{
		logger: logger,
		store:  store,
	}
}

func (h *TemplateHandler) validate(tpl *db.Template) string {
	switch {
	case tpl.Slug == "":
		return "slug is required"
	case tpl.Language == "":
		return "language is required"
	case !tpl.Channel.Valid():
		return "channel must be EMAIL or CHAT"
	case tpl.Type != notify.TypeText && tpl.Type != notify.TypeImage:
		return "type must be TEXT or IMAGE"
	case tpl.Content == "":
		return "content is required"
	case tpl.Type == notify.TypeImage && (tpl.ImageURL == nil || *tpl.ImageURL == ""):
		return "image_url is required for IMAGE templates"
	}
	return ""
}

// CreateTemplate handles POST /api/v1/templates
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var tpl db.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if msg := h.validate(&tpl); msg != "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid template", msg)
		return
	}

	if err := h.store.Create(ctx, &tpl); err != nil {
		if errors.Is(err, db.ErrTemplateExists) {
			h.writeError(w, http.StatusConflict, "already_exists", "Template already exists",
				"a template with this slug, language, and channel exists")
			return
		}
		h.logger.Error("failed to create template",
			zap.Error(err),
			zap.String("slug", tpl.Slug),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create template", "")
		return
	}

	h.logger.Info("template created",
		zap.String("slug", tpl.Slug),
		zap.String("language", tpl.Language),
		zap.String("channel", string(tpl.Channel)),
	)

	h.writeJSON(w, http.StatusCreated, tpl)
}

// GetTemplate handles GET /api/v1/templates/{slug}/{language}/{channel}
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slug := chi.URLParam(r, "slug")
	language := chi.URLParam(r, "language")
	channel := notify.Channel(strings.ToUpper(chi.URLParam(r, "channel")))

	if !channel.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid channel", "channel must be EMAIL or CHAT")
		return
	}

	tpl, err := h.store.Get(ctx, slug, language, channel)
	if err != nil {
		if errors.Is(err, db.ErrTemplateNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Template not found", "")
			return
		}
		h.logger.Error("failed to get template", zap.Error(err), zap.String("slug", slug))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get template", "")
		return
	}

	h.writeJSON(w, http.StatusOK, tpl)
}

// UpdateTemplate handles PUT /api/v1/templates/{slug}/{language}/{channel}
func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var tpl db.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	// The key comes from the URL; the body may not move the template.
	tpl.Slug = chi.URLParam(r, "slug")
	tpl.Language = chi.URLParam(r, "language")
	tpl.Channel = notify.Channel(strings.ToUpper(chi.URLParam(r, "channel")))

	if msg := h.validate(&tpl); msg != "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid template", msg)
		return
	}

	if err := h.store.Update(ctx, &tpl); err != nil {
		if errors.Is(err, db.ErrTemplateNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Template not found", "")
			return
		}
		h.logger.Error("failed to update template", zap.Error(err), zap.String("slug", tpl.Slug))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to update template", "")
		return
	}

	h.logger.Info("template updated",
		zap.String("slug", tpl.Slug),
		zap.String("language", tpl.Language),
		zap.String("channel", string(tpl.Channel)),
	)

	h.writeJSON(w, http.StatusOK, tpl)
}

// DeleteTemplate handles DELETE /api/v1/templates/{slug}/{language}/{channel}
func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slug := chi.URLParam(r, "slug")
	language := chi.URLParam(r, "language")
	channel := notify.Channel(strings.ToUpper(chi.URLParam(r, "channel")))

	if !channel.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid channel", "channel must be EMAIL or CHAT")
		return
	}

	if err := h.store.Delete(ctx, slug, language, channel); err != nil {
		if errors.Is(err, db.ErrTemplateNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Template not found", "")
			return
		}
		h.logger.Error("failed to delete template", zap.Error(err), zap.String("slug", slug))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to delete template", "")
		return
	}

	h.logger.Info("template deleted",
		zap.String("slug", slug),
		zap.String("language", language),
		zap.String("channel", string(channel)),
	)

	w.WriteHeader(http.StatusNoContent)
}

// ListTemplates handles GET /api/v1/templates?limit=20&offset=0
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 20
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	templates, err := h.store.List(ctx, limit, offset)
	if err != nil {
		h.logger.Error("failed to list templates", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list templates", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"data":   templates,
		"limit":  limit,
		"offset": offset,
		"count":  len(templates),
	})
}

func (h *TemplateHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *TemplateHandler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
