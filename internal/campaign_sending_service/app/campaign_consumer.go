package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
	scheddomain "github.com/relayline/wabroadcast/internal/scheduler_service/domain"
)

// QueueGroup makes NATS deliver each campaign job to exactly one sending
// service instance.
const QueueGroup = "campaign_senders"

type campaignRunner interface {
	Run(ctx context.Context, campaign *core_domain.Campaign) error
	Fail(ctx context.Context, campaign *core_domain.Campaign, reason string)
}

// ConsumerConfig holds the retry policy for failed campaign jobs.
type ConsumerConfig struct {
	MaxAttempts      int
	RetryBackoffBase time.Duration
}

// CampaignConsumer receives campaign-send jobs from the message bus, runs the
// send loop, and finalizes the queue job: completed on success, retry with
// exponential backoff on failure, failed after the attempt budget.
type CampaignConsumer struct {
	runner    campaignRunner
	campaigns repository.CampaignRepository
	jobs      scheddomain.ScheduledJobRepository
	logger    *slog.Logger
	config    ConsumerConfig
}

func NewCampaignConsumer(
	runner campaignRunner,
	campaigns repository.CampaignRepository,
	jobs scheddomain.ScheduledJobRepository,
	logger *slog.Logger,
	cfg ConsumerConfig,
) *CampaignConsumer {
	return &CampaignConsumer{
		runner:    runner,
		campaigns: campaigns,
		jobs:      jobs,
		logger:    logger.With("component", "campaign_consumer"),
		config:    cfg,
	}
}

// Handler returns the NATS message handler bound to ctx for message-scoped
// work.
func (c *CampaignConsumer) Handler(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		c.handle(ctx, msg.Data)
	}
}

func (c *CampaignConsumer) handle(ctx context.Context, data []byte) {
	var payload scheddomain.CampaignJobPayload
	if err := payload.FromJSON(data); err != nil {
		c.logger.ErrorContext(ctx, "Dropping undecodable campaign job", "error", err, "payload", string(data))
		return
	}
	logger := c.logger.With("job_id", payload.JobID, "campaign_id", payload.CampaignID)

	campaign, err := c.campaigns.GetByID(ctx, payload.CampaignID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.ErrorContext(ctx, "Campaign for job no longer exists, failing job")
			c.finalizeJob(ctx, payload, scheddomain.StatusFailed, "campaign not found")
			return
		}
		logger.ErrorContext(ctx, "Failed to load campaign", "error", err)
		c.retryOrFail(ctx, payload, nil, "load campaign: "+err.Error())
		return
	}

	// A campaign cancelled (or already run) after its job was enqueued is a
	// clean no-op, not a failure. Every other status stays eligible so a
	// retried job can re-invoke an interrupted or failed-attempt campaign.
	switch campaign.Status {
	case core_domain.CampaignStatusCancelled, core_domain.CampaignStatusCompleted:
		logger.InfoContext(ctx, "Campaign already finished or cancelled, skipping send", "status", campaign.Status)
		c.finalizeJob(ctx, payload, scheddomain.StatusCompleted, "")
		campaignRunsCounter.WithLabelValues("skipped").Inc()
		return
	}

	if err := c.runner.Run(ctx, campaign); err != nil {
		logger.ErrorContext(ctx, "Campaign run failed", "error", err)
		c.retryOrFail(ctx, payload, campaign, err.Error())
		return
	}
	c.finalizeJob(ctx, payload, scheddomain.StatusCompleted, "")
}

// retryOrFail books the failed attempt on the queue job. The campaign itself
// is only marked failed once the attempt budget is spent; campaign is nil
// when the failure happened before it could be loaded.
func (c *CampaignConsumer) retryOrFail(ctx context.Context, payload scheddomain.CampaignJobPayload, campaign *core_domain.Campaign, reason string) {
	// Retry bookkeeping must survive service shutdown, the triggering ctx
	// may already be cancelled.
	ctx = context.WithoutCancel(ctx)
	job, err := c.jobs.GetByID(ctx, payload.JobID)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to load job for retry bookkeeping", "job_id", payload.JobID, "error", err)
		return
	}
	if job.RetryCount < c.config.MaxAttempts-1 {
		backoff := c.config.RetryBackoffBase
		for i := 0; i < job.RetryCount; i++ {
			backoff *= 2
		}
		nextRetryTime := time.Now().UTC().Add(backoff)
		c.logger.InfoContext(ctx, "Scheduling job retry", "job_id", job.ID, "next_retry_at", nextRetryTime, "attempt", job.RetryCount+1)
		if err := c.jobs.MarkForRetry(ctx, job.ID, nextRetryTime, job.RetryCount, sql.NullString{String: reason, Valid: true}); err != nil {
			c.logger.ErrorContext(ctx, "Failed to mark job for retry", "job_id", job.ID, "error", err)
		}
		return
	}
	c.logger.WarnContext(ctx, "Job exhausted attempts", "job_id", job.ID, "max_attempts", c.config.MaxAttempts)
	if campaign != nil {
		c.runner.Fail(ctx, campaign, reason)
	}
	c.finalizeJob(ctx, payload, scheddomain.StatusFailed, "failed after max attempts: "+reason)
}

func (c *CampaignConsumer) finalizeJob(ctx context.Context, payload scheddomain.CampaignJobPayload, status scheddomain.JobStatus, reason string) {
	err := c.jobs.UpdateStatus(context.WithoutCancel(ctx), payload.JobID, status, time.Now().UTC(), sql.NullString{String: reason, Valid: reason != ""})
	if err != nil && !errors.Is(err, scheddomain.ErrNotFound) {
		c.logger.ErrorContext(ctx, "Failed to finalize job", "job_id", payload.JobID, "status", status, "error", err)
	}
}
