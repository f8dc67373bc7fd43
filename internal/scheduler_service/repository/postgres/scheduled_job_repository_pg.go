package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	pgrepo "github.com/relayline/wabroadcast/internal/repository/postgres"
	"github.com/relayline/wabroadcast/internal/scheduler_service/domain"
)

type PgScheduledJobRepository struct {
	db     pgrepo.DB
	logger *slog.Logger
}

func NewPgScheduledJobRepository(db pgrepo.DB, logger *slog.Logger) *PgScheduledJobRepository {
	return &PgScheduledJobRepository{db: db, logger: logger.With("component", "scheduled_job_repository_pg")}
}

const jobColumns = `id, job_type, payload, scheduled_at, status, run_at, processed_at, error_message, retry_count, created_at, updated_at`

func (r *PgScheduledJobRepository) Create(ctx context.Context, job *domain.ScheduledJob) error {
	query := `
		INSERT INTO scheduled_jobs (id, job_type, payload, scheduled_at, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		job.ID, job.JobType, []byte(job.Payload), job.ScheduledAt, job.Status,
		job.RetryCount, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating scheduled job", "error", err, "job_id", job.ID)
		return err
	}
	return nil
}

func (r *PgScheduledJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = $1`
	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting scheduled job by ID", "error", err, "job_id", id)
		return nil, err
	}
	return job, nil
}

// UpdateStatus updates a job's status, error message, and the relevant
// timestamp (run_at for processing, processed_at for terminal states).
func (r *PgScheduledJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, eventTime time.Time, errorMessage sql.NullString) error {
	var query string
	updatedAt := time.Now().UTC()

	switch status {
	case domain.StatusProcessing:
		query = `UPDATE scheduled_jobs SET status = $1, run_at = $2, updated_at = $3 WHERE id = $4`
	case domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled:
		query = `UPDATE scheduled_jobs SET status = $1, processed_at = $2, updated_at = $3, error_message = $5 WHERE id = $4`
	default:
		query = `UPDATE scheduled_jobs SET status = $1, updated_at = $3, error_message = $5 WHERE id = $4`
	}

	var args []any
	if status == domain.StatusProcessing {
		args = []any{status, eventTime, updatedAt, id}
	} else {
		args = []any{status, eventTime, updatedAt, id, errorMessage}
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating scheduled job status", "error", err, "job_id", id, "new_status", status)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgScheduledJobRepository) AcquireDueJobs(ctx context.Context, dueTime time.Time, limit int) ([]*domain.ScheduledJob, error) {
	query := `
		WITH due_job_ids AS (
			SELECT id
			FROM scheduled_jobs
			WHERE (status = $1 OR status = $2) AND scheduled_at <= $3
			ORDER BY scheduled_at ASC, retry_count ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		UPDATE scheduled_jobs sj
		SET status = $5, run_at = $6, updated_at = $6
		FROM due_job_ids dj
		WHERE sj.id = dj.id
		RETURNING sj.id, sj.job_type, sj.payload, sj.scheduled_at, sj.status, sj.run_at, sj.processed_at, sj.error_message, sj.retry_count, sj.created_at, sj.updated_at
	`
	now := time.Now().UTC()
	rows, err := r.db.Query(ctx, query, domain.StatusPending, domain.StatusRetry, dueTime, limit, domain.StatusProcessing, now)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error acquiring due jobs", "error", err)
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Error scanning acquired job row", "error", err)
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, domain.ErrNoDueJobs
	}
	return jobs, nil
}

// MarkForRetry moves the job back into the queue for another attempt.
// run_at and processed_at are cleared so the retry looks like a fresh pickup.
func (r *PgScheduledJobRepository) MarkForRetry(ctx context.Context, id uuid.UUID, nextRetryTime time.Time, currentRetryCount int, errorMessage sql.NullString) error {
	query := `
		UPDATE scheduled_jobs
		SET status = $1, scheduled_at = $2, retry_count = $3, error_message = $4, updated_at = $5, run_at = NULL, processed_at = NULL
		WHERE id = $6
	`
	tag, err := r.db.Exec(ctx, query,
		domain.StatusRetry, nextRetryTime, currentRetryCount+1, errorMessage, time.Now().UTC(), id,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking job for retry", "error", err, "job_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgScheduledJobRepository) CancelPending(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE scheduled_jobs
		SET status = $1, processed_at = $2, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx, query, domain.StatusCancelled, now, id, domain.StatusPending, domain.StatusRetry)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error cancelling scheduled job", "error", err, "job_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgScheduledJobRepository) UpdateScheduledAt(ctx context.Context, id uuid.UUID, scheduledAt time.Time) error {
	query := `
		UPDATE scheduled_jobs
		SET scheduled_at = $1, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`
	tag, err := r.db.Exec(ctx, query, scheduledAt, time.Now().UTC(), id, domain.StatusPending, domain.StatusRetry)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error rescheduling job", "error", err, "job_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.ScheduledJob, error) {
	job := &domain.ScheduledJob{}
	var payloadJSON []byte
	err := row.Scan(
		&job.ID, &job.JobType, &payloadJSON, &job.ScheduledAt, &job.Status,
		&job.RunAt, &job.ProcessedAt, &job.Error, &job.RetryCount, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Payload = json.RawMessage(payloadJSON)
	return job, nil
}
