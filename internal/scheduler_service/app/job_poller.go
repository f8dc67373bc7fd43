package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/relayline/wabroadcast/internal/platform/messagebroker"
	"github.com/relayline/wabroadcast/internal/scheduler_service/domain"
)

var (
	jobsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "jobs_processed_total",
			Help:      "Total number of jobs processed by the scheduler.",
		},
		[]string{"job_type", "status"},
	)
	jobDispatchDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scheduler",
			Name:      "job_dispatch_duration_seconds",
			Help:      "Duration of dispatching a due job to the message bus.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job_type"},
	)
)

// PollerConfig holds configuration specific to the JobPoller.
type PollerConfig struct {
	PollingInterval  time.Duration
	JobBatchSize     int
	MaxAttempts      int
	RetryBackoffBase time.Duration
}

// JobPoller acquires due scheduled jobs and publishes them to the message
// bus. The sending service finalizes the job (completed, retry, failed); the
// poller only moves jobs to a terminal state when they are malformed or
// cannot be published.
type JobPoller struct {
	repo      domain.ScheduledJobRepository
	publisher messagebroker.Publisher
	logger    *slog.Logger
	config    PollerConfig
}

func NewJobPoller(repo domain.ScheduledJobRepository, publisher messagebroker.Publisher, logger *slog.Logger, cfg PollerConfig) *JobPoller {
	return &JobPoller{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("component", "job_poller"),
		config:    cfg,
	}
}

// Run polls on the configured interval until ctx is cancelled.
func (p *JobPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.PollingInterval)
	defer ticker.Stop()

	p.logger.InfoContext(ctx, "Job poller started", "interval", p.config.PollingInterval, "batch_size", p.config.JobBatchSize)
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "Job poller stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.PollAndDispatchJobs(ctx); err != nil {
				p.logger.ErrorContext(ctx, "Poll cycle failed", "error", err)
			}
		}
	}
}

// PollAndDispatchJobs acquires due jobs and publishes each to the campaign
// jobs subject. It returns the number of jobs attempted in this cycle.
func (p *JobPoller) PollAndDispatchJobs(ctx context.Context) (dispatched int, err error) {
	acquiredJobs, err := p.repo.AcquireDueJobs(ctx, time.Now().UTC(), p.config.JobBatchSize)
	if err != nil {
		if errors.Is(err, domain.ErrNoDueJobs) {
			return 0, nil
		}
		return 0, fmt.Errorf("acquire due jobs: %w", err)
	}

	p.logger.InfoContext(ctx, "Acquired due jobs", "count", len(acquiredJobs))

	for _, job := range acquiredJobs {
		dispatched++
		timer := prometheus.NewTimer(jobDispatchDurationHist.WithLabelValues(job.JobType))
		outcome := p.dispatchJob(ctx, job)
		timer.ObserveDuration()
		jobsProcessedCounter.WithLabelValues(job.JobType, outcome).Inc()
	}
	return dispatched, nil
}

func (p *JobPoller) dispatchJob(ctx context.Context, job *domain.ScheduledJob) (outcome string) {
	logger := p.logger.With("job_id", job.ID, "job_type", job.JobType, "retry_count", job.RetryCount)

	if job.JobType != domain.JobTypeCampaignSend {
		logger.WarnContext(ctx, "Unknown job type, failing job")
		p.finalize(ctx, job.ID, domain.StatusFailed, "unknown job type: "+job.JobType)
		return "unknown_job_type"
	}

	var payload domain.CampaignJobPayload
	if err := payload.FromJSON(job.Payload); err != nil {
		// A malformed payload will not fix itself on retry.
		logger.ErrorContext(ctx, "Failed to deserialize job payload", "error", err)
		p.finalize(ctx, job.ID, domain.StatusFailed, "payload deserialization failed: "+err.Error())
		return "bad_payload"
	}
	payload.JobID = job.ID

	data, err := payload.ToJSON()
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal job payload for publish", "error", err)
		p.finalize(ctx, job.ID, domain.StatusFailed, "payload marshal failed: "+err.Error())
		return "bad_payload"
	}

	if err := p.publisher.Publish(ctx, messagebroker.SubjectCampaignJobs, data); err != nil {
		logger.ErrorContext(ctx, "Failed to publish job", "error", err, "subject", messagebroker.SubjectCampaignJobs)
		return p.retryOrFail(ctx, job, "publish: "+err.Error())
	}

	// Job stays in processing; the consumer marks it completed or retries.
	logger.InfoContext(ctx, "Job published", "subject", messagebroker.SubjectCampaignJobs, "campaign_id", payload.CampaignID)
	return "dispatched"
}

func (p *JobPoller) retryOrFail(ctx context.Context, job *domain.ScheduledJob, reason string) string {
	if job.RetryCount < p.config.MaxAttempts-1 {
		nextRetryTime := time.Now().UTC().Add(RetryBackoff(p.config.RetryBackoffBase, job.RetryCount))
		if err := p.repo.MarkForRetry(ctx, job.ID, nextRetryTime, job.RetryCount, sql.NullString{String: reason, Valid: true}); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark job for retry", "job_id", job.ID, "error", err)
			return "error_mark_for_retry"
		}
		return "retry_scheduled"
	}
	p.finalize(ctx, job.ID, domain.StatusFailed, "failed after max attempts: "+reason)
	return "max_attempts_reached"
}

func (p *JobPoller) finalize(ctx context.Context, id uuid.UUID, status domain.JobStatus, reason string) {
	if err := p.repo.UpdateStatus(ctx, id, status, time.Now().UTC(), sql.NullString{String: reason, Valid: reason != ""}); err != nil {
		p.logger.ErrorContext(ctx, "Failed to finalize job", "job_id", id, "status", status, "error", err)
	}
}

// RetryBackoff doubles the base delay per prior attempt: base, 2x, 4x, ...
func RetryBackoff(base time.Duration, retryCount int) time.Duration {
	backoff := base
	for i := 0; i < retryCount; i++ {
		backoff *= 2
	}
	return backoff
}
