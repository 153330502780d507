// Package template implements template resolution with language
// fallback and variable-map rendering.
package template

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/db"
	"github.com/vibesoft/herald/internal/notify"
)

// Store is the template lookup the resolver needs.
type Store interface {
	Get(ctx context.Context, slug, language string, channel notify.Channel) (*db.Template, error)
}

// Resolver looks up templates by (slug, language, channel) with a fixed
// fallback to the default language. Read-only; callers may use it as a
// pre-flight check before committing to processing.
type Resolver struct {
	store  Store
	logger *zap.Logger
}

// NewResolver creates a template resolver over the given store.
func NewResolver(store Store, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
	}
}

// Resolve returns the template for the exact key, falling back to the
// default language when the requested one is absent. No channel
// fallback and no partial matches.
func (r *Resolver) Resolve(ctx context.Context, slug, language string, channel notify.Channel) (*db.Template, error) {
	tpl, err := r.store.Get(ctx, slug, language, channel)
	if err == nil {
		return tpl, nil
	}
	if !errors.Is(err, db.ErrTemplateNotFound) {
		return nil, err
	}

	if language != notify.DefaultLanguage {
		r.logger.Info("template missing for requested language, trying fallback",
			zap.String("slug", slug),
			zap.String("language", language),
			zap.String("fallback", notify.DefaultLanguage),
		)

		tpl, err = r.store.Get(ctx, slug, notify.DefaultLanguage, channel)
		if err == nil {
			return tpl, nil
		}
		if !errors.Is(err, db.ErrTemplateNotFound) {
			return nil, err
		}
	}

	r.logger.Error("template resolution failed",
		zap.String("slug", slug),
		zap.String("language", language),
		zap.String("channel", string(channel)),
	)
	return nil, &notify.NotFoundError{Slug: slug, Language: language}
}
