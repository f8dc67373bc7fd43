package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
)

type PgMessageRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgMessageRepository(db DB, logger *slog.Logger) repository.MessageRepository {
	return &PgMessageRepository{db: db, logger: logger.With("component", "message_repository_pg")}
}

const messageColumns = `id, campaign_id, contact_id, payload, status, provider_message_id,
	       sent_at, delivered_at, read_at, error_message, retry_count, created_at`

func (r *PgMessageRepository) Create(ctx context.Context, m *core_domain.Message) error {
	query := `
		INSERT INTO messages (
			id, campaign_id, contact_id, payload, status, provider_message_id,
			sent_at, delivered_at, read_at, error_message, retry_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		m.ID, m.CampaignID, m.ContactID, []byte(m.Payload), m.Status, m.ProviderMessageID,
		m.SentAt, m.DeliveredAt, m.ReadAt, m.ErrorMessage, m.RetryCount, m.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateProviderMessageID
		}
		r.logger.ErrorContext(ctx, "Error creating message", "error", err, "message_id", m.ID)
		return err
	}
	return nil
}

func (r *PgMessageRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*core_domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE provider_message_id = $1`
	return scanMessage(r.db.QueryRow(ctx, query, providerMessageID))
}

// ApplyStatusUpdate records the status and its event timestamp. COALESCE
// keeps the first-seen timestamp, so replayed or out-of-order callbacks
// cannot rewrite history.
func (r *PgMessageRepository) ApplyStatusUpdate(ctx context.Context, id uuid.UUID, status core_domain.MessageStatus, eventTime time.Time, errorMessage sql.NullString) error {
	query := `
		UPDATE messages
		SET status = $2,
		    sent_at      = CASE WHEN $2 = 'sent'      THEN COALESCE(sent_at, $3)      ELSE sent_at END,
		    delivered_at = CASE WHEN $2 = 'delivered' THEN COALESCE(delivered_at, $3) ELSE delivered_at END,
		    read_at      = CASE WHEN $2 = 'read'      THEN COALESCE(read_at, $3)      ELSE read_at END,
		    error_message = COALESCE($4, error_message)
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, status, eventTime, errorMessage)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error applying message status update", "error", err, "message_id", id, "status", status)
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RecordStatusTimestamp writes only the timestamp column owned by the given
// status. An out-of-order delivered callback arriving after read still gets
// its delivered_at recorded while the status column stays at read.
func (r *PgMessageRepository) RecordStatusTimestamp(ctx context.Context, id uuid.UUID, status core_domain.MessageStatus, eventTime time.Time) error {
	query := `
		UPDATE messages
		SET sent_at      = CASE WHEN $2 = 'sent'      THEN COALESCE(sent_at, $3)      ELSE sent_at END,
		    delivered_at = CASE WHEN $2 = 'delivered' THEN COALESCE(delivered_at, $3) ELSE delivered_at END,
		    read_at      = CASE WHEN $2 = 'read'      THEN COALESCE(read_at, $3)      ELSE read_at END
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, status, eventTime)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error recording status timestamp", "error", err, "message_id", id, "status", status)
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PgMessageRepository) LatestOutboundForContact(ctx context.Context, contactID uuid.UUID) (*core_domain.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE contact_id = $1 AND status IN ('sent', 'delivered', 'read')
		ORDER BY sent_at DESC NULLS LAST, created_at DESC
		LIMIT 1`
	return scanMessage(r.db.QueryRow(ctx, query, contactID))
}

func (r *PgMessageRepository) HasMessageForContact(ctx context.Context, campaignID, contactID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM messages WHERE campaign_id = $1 AND contact_id = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, campaignID, contactID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanMessage(row pgx.Row) (*core_domain.Message, error) {
	m := &core_domain.Message{}
	var payload []byte
	err := row.Scan(
		&m.ID, &m.CampaignID, &m.ContactID, &payload, &m.Status, &m.ProviderMessageID,
		&m.SentAt, &m.DeliveredAt, &m.ReadAt, &m.ErrorMessage, &m.RetryCount, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	m.Payload = payload
	return m, nil
}
