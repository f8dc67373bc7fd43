package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
)

type PgCampaignRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgCampaignRepository(db DB, logger *slog.Logger) repository.CampaignRepository {
	return &PgCampaignRepository{db: db, logger: logger.With("component", "campaign_repository_pg")}
}

const campaignColumns = `id, name, template_id, contact_ids, variables, scheduled_at, status,
	       rate_limit_per_minute, progress_total, progress_sent, progress_delivered,
	       progress_read, progress_failed, job_id, triggered_by, created_at, updated_at`

func (r *PgCampaignRepository) Create(ctx context.Context, c *core_domain.Campaign) error {
	contactIDs, err := json.Marshal(c.ContactIDs)
	if err != nil {
		return fmt.Errorf("marshal contact ids: %w", err)
	}
	variables, err := json.Marshal(c.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}

	query := `
		INSERT INTO campaigns (
			id, name, template_id, contact_ids, variables, scheduled_at, status,
			rate_limit_per_minute, progress_total, progress_sent, progress_delivered,
			progress_read, progress_failed, job_id, triggered_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.db.Exec(ctx, query,
		c.ID, c.Name, c.TemplateID, contactIDs, variables, c.ScheduledAt, c.Status,
		c.RateLimitPerMinute, c.Progress.Total, c.Progress.Sent, c.Progress.Delivered,
		c.Progress.Read, c.Progress.Failed, c.JobID, c.TriggeredBy, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating campaign", "error", err, "campaign_id", c.ID)
		return err
	}
	return nil
}

func (r *PgCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*core_domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return r.scanCampaign(ctx, r.db.QueryRow(ctx, query, id))
}

func (r *PgCampaignRepository) scanCampaign(ctx context.Context, row pgx.Row) (*core_domain.Campaign, error) {
	c := &core_domain.Campaign{}
	var contactIDs, variables []byte
	err := row.Scan(
		&c.ID, &c.Name, &c.TemplateID, &contactIDs, &variables, &c.ScheduledAt, &c.Status,
		&c.RateLimitPerMinute, &c.Progress.Total, &c.Progress.Sent, &c.Progress.Delivered,
		&c.Progress.Read, &c.Progress.Failed, &c.JobID, &c.TriggeredBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if len(contactIDs) > 0 {
		if err := json.Unmarshal(contactIDs, &c.ContactIDs); err != nil {
			return nil, fmt.Errorf("unmarshal contact ids: %w", err)
		}
	}
	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &c.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
	}
	return c, nil
}

// UpdateStatus also clears the job handle unless the new status is scheduled,
// so the handle can never outlive the scheduled state.
func (r *PgCampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status core_domain.CampaignStatus) error {
	query := `
		UPDATE campaigns
		SET status = $2,
		    job_id = CASE WHEN $2 = 'scheduled' THEN job_id ELSE NULL END,
		    updated_at = $3
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating campaign status", "error", err, "campaign_id", id, "status", status)
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PgCampaignRepository) SetJobID(ctx context.Context, id uuid.UUID, jobID uuid.NullUUID) error {
	query := `UPDATE campaigns SET job_id = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, jobID, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PgCampaignRepository) UpdateScheduledAt(ctx context.Context, id uuid.UUID, scheduledAt time.Time) error {
	query := `UPDATE campaigns SET scheduled_at = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, scheduledAt, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetProgressTotal never shrinks an already-set total.
func (r *PgCampaignRepository) SetProgressTotal(ctx context.Context, id uuid.UUID, total int) error {
	query := `UPDATE campaigns SET progress_total = GREATEST(progress_total, $2), updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, total, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// IncrementProgress is a single statement so the send loop and the webhook
// reconciler never race a read-modify-write.
func (r *PgCampaignRepository) IncrementProgress(ctx context.Context, id uuid.UUID, delta repository.ProgressDelta) error {
	query := `
		UPDATE campaigns
		SET progress_sent      = progress_sent + $2,
		    progress_delivered = progress_delivered + $3,
		    progress_read      = progress_read + $4,
		    progress_failed    = progress_failed + $5,
		    updated_at         = $6
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, delta.Sent, delta.Delivered, delta.Read, delta.Failed, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error incrementing campaign progress", "error", err, "campaign_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PgCampaignRepository) ListStrandedScheduled(ctx context.Context, now time.Time) ([]*core_domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at > $1 AND job_id IS NULL
		ORDER BY scheduled_at ASC`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*core_domain.Campaign
	for rows.Next() {
		c, err := r.scanCampaign(ctx, rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return campaigns, nil
}
