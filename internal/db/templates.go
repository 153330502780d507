package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/notify"
)

// Template store errors. ErrTemplateNotFound covers the single-key
// lookup only; language fallback is the resolver's concern.
var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateExists   = errors.New("template already exists")
)

// TemplateStore handles persistence for notification templates.
// Externally managed content; this service only reads it during
// processing and exposes plain CRUD for administration.
type TemplateStore struct {
	db     *DB
	logger *zap.Logger
}

// NewTemplateStore creates a template store backed by postgres.
func NewTemplateStore(db *DB, logger *zap.Logger) *TemplateStore {
	return &TemplateStore{
		db:     db,
		logger: logger,
	}
}

// Get looks up a template by its composite key (slug, language, channel).
func (s *TemplateStore) Get(ctx context.Context, slug, language string, channel notify.Channel) (*Template, error) {
	query := `
		SELECT slug, language, channel, type, subject, content, image_url, created_at, updated_at
		FROM templates
		WHERE slug = $1 AND language = $2 AND channel = $3
	`

	var tpl Template
	err := s.db.Pool().QueryRow(ctx, query, slug, language, channel).Scan(
		&tpl.Slug,
		&tpl.Language,
		&tpl.Channel,
		&tpl.Type,
		&tpl.Subject,
		&tpl.Content,
		&tpl.ImageURL,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, &notify.InfrastructureError{Op: "query template", Err: err}
	}

	return &tpl, nil
}

// Create inserts a new template; duplicate keys fail with ErrTemplateExists.
func (s *TemplateStore) Create(ctx context.Context, tpl *Template) error {
	query := `
		INSERT INTO templates (slug, language, channel, type, subject, content, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := s.db.Pool().QueryRow(ctx, query,
		tpl.Slug,
		tpl.Language,
		tpl.Channel,
		tpl.Type,
		tpl.Subject,
		tpl.Content,
		tpl.ImageURL,
	).Scan(&tpl.CreatedAt, &tpl.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrTemplateExists
	}
	if err != nil {
		return &notify.InfrastructureError{Op: "insert template", Err: err}
	}

	s.logger.Info("template created",
		zap.String("slug", tpl.Slug),
		zap.String("language", tpl.Language),
		zap.String("channel", string(tpl.Channel)),
	)
	return nil
}

// Update replaces the mutable fields of an existing template.
func (s *TemplateStore) Update(ctx context.Context, tpl *Template) error {
	query := `
		UPDATE templates
		SET type = $1, subject = $2, content = $3, image_url = $4, updated_at = NOW()
		WHERE slug = $5 AND language = $6 AND channel = $7
	`

	result, err := s.db.Pool().Exec(ctx, query,
		tpl.Type,
		tpl.Subject,
		tpl.Content,
		tpl.ImageURL,
		tpl.Slug,
		tpl.Language,
		tpl.Channel,
	)
	if err != nil {
		return &notify.InfrastructureError{Op: "update template", Err: err}
	}

	if result.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}

	return nil
}

// Delete removes a template by its composite key.
func (s *TemplateStore) Delete(ctx context.Context, slug, language string, channel notify.Channel) error {
	result, err := s.db.Pool().Exec(ctx,
		`DELETE FROM templates WHERE slug = $1 AND language = $2 AND channel = $3`,
		slug, language, channel,
	)
	if err != nil {
		return &notify.InfrastructureError{Op: "delete template", Err: err}
	}

	if result.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}

	s.logger.Info("template deleted",
		zap.String("slug", slug),
		zap.String("language", language),
		zap.String("channel", string(channel)),
	)
	return nil
}

// List returns templates ordered by key, paginated.
func (s *TemplateStore) List(ctx context.Context, limit, offset int) ([]*Template, error) {
	query := `
		SELECT slug, language, channel, type, subject, content, image_url, created_at, updated_at
		FROM templates
		ORDER BY slug, language, channel
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, &notify.InfrastructureError{Op: "list templates", Err: err}
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		var tpl Template
		err := rows.Scan(
			&tpl.Slug,
			&tpl.Language,
			&tpl.Channel,
			&tpl.Type,
			&tpl.Subject,
			&tpl.Content,
			&tpl.ImageURL,
			&tpl.CreatedAt,
			&tpl.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		templates = append(templates, &tpl)
	}

	return templates, rows.Err()
}
