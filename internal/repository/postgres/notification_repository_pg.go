package postgres

import (
	"context"
	"log/slog"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
)

type PgNotificationRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgNotificationRepository(db DB, logger *slog.Logger) repository.NotificationRepository {
	return &PgNotificationRepository{db: db, logger: logger.With("component", "notification_repository_pg")}
}

func (r *PgNotificationRepository) Create(ctx context.Context, n *core_domain.Notification) error {
	query := `
		INSERT INTO notifications (id, kind, title, body, campaign_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, n.ID, n.Kind, n.Title, n.Body, n.CampaignID, n.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating notification", "error", err, "notification_id", n.ID)
		return err
	}
	return nil
}
