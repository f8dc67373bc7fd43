package domain

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ScheduledJobRepository defines the interface for managing ScheduledJob data.
type ScheduledJobRepository interface {
	Create(ctx context.Context, job *ScheduledJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduledJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status JobStatus, eventTime time.Time, errorMessage sql.NullString) error

	// AcquireDueJobs selects pending or retry jobs that are due, moves them
	// to processing with run_at set, and returns them. Concurrent pollers
	// skip rows another poller already locked.
	AcquireDueJobs(ctx context.Context, dueTime time.Time, limit int) ([]*ScheduledJob, error)

	// MarkForRetry moves a job back to retry with an incremented retry count
	// and a new scheduled_at for the next attempt.
	MarkForRetry(ctx context.Context, id uuid.UUID, nextRetryTime time.Time, currentRetryCount int, errorMessage sql.NullString) error

	// CancelPending cancels a job only while it still sits in pending or
	// retry. A job already consumed is left alone; cancellation of a running
	// campaign is enforced by the sending service, not the queue.
	CancelPending(ctx context.Context, id uuid.UUID) error

	// UpdateScheduledAt moves a pending or retry job to a new due time.
	UpdateScheduledAt(ctx context.Context, id uuid.UUID, scheduledAt time.Time) error
}
