package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
)

type PgTemplateRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgTemplateRepository(db DB, logger *slog.Logger) repository.TemplateRepository {
	return &PgTemplateRepository{db: db, logger: logger.With("component", "template_repository_pg")}
}

func (r *PgTemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*core_domain.Template, error) {
	query := `
		SELECT id, name, provider_name, language, body, components, status, created_at, updated_at
		FROM templates
		WHERE id = $1
	`
	t := &core_domain.Template{}
	var components []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.ProviderName, &t.Language, &t.Body, &components, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	t.Components, err = core_domain.DecodeComponents(json.RawMessage(components))
	if err != nil {
		r.logger.ErrorContext(ctx, "Error decoding template components", "error", err, "template_id", id)
		return nil, err
	}
	return t, nil
}

func (r *PgTemplateRepository) UpdateStatusByProviderName(ctx context.Context, providerName string, status core_domain.TemplateStatus) error {
	query := `UPDATE templates SET status = $2, updated_at = $3 WHERE provider_name = $1`
	tag, err := r.db.Exec(ctx, query, providerName, status, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
