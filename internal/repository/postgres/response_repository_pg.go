package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
)

type PgResponseRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgResponseRepository(db DB, logger *slog.Logger) repository.ResponseRepository {
	return &PgResponseRepository{db: db, logger: logger.With("component", "response_repository_pg")}
}

func (r *PgResponseRepository) Create(ctx context.Context, resp *core_domain.Response) error {
	query := `
		INSERT INTO responses (
			id, from_phone, contact_id, campaign_id, message_id, type, content,
			button_payload, button_text, processed, auto_responded, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		resp.ID, resp.FromPhone, resp.ContactID, resp.CampaignID, resp.MessageID, resp.Type, resp.Content,
		resp.ButtonPayload, resp.ButtonText, resp.Processed, resp.AutoResponded, resp.ReceivedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating response", "error", err, "response_id", resp.ID)
		return err
	}
	return nil
}

func (r *PgResponseRepository) MarkAutoResponded(ctx context.Context, id uuid.UUID) error {
	return r.setFlag(ctx, id, `UPDATE responses SET auto_responded = TRUE WHERE id = $1`)
}

func (r *PgResponseRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.setFlag(ctx, id, `UPDATE responses SET processed = TRUE WHERE id = $1`)
}

func (r *PgResponseRepository) setFlag(ctx context.Context, id uuid.UUID, query string) error {
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
