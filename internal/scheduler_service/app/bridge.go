package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
	"github.com/relayline/wabroadcast/internal/scheduler_service/domain"
)

// SchedulerBridge connects campaigns to the job queue: every scheduled
// campaign owns exactly one queue job, referenced by the campaign's job
// handle.
type SchedulerBridge struct {
	jobs      domain.ScheduledJobRepository
	campaigns repository.CampaignRepository
	logger    *slog.Logger
}

func NewSchedulerBridge(jobs domain.ScheduledJobRepository, campaigns repository.CampaignRepository, logger *slog.Logger) *SchedulerBridge {
	return &SchedulerBridge{
		jobs:      jobs,
		campaigns: campaigns,
		logger:    logger.With("component", "scheduler_bridge"),
	}
}

// Schedule enqueues a campaign-send job for the campaign's scheduled time and
// records the job handle on the campaign.
func (b *SchedulerBridge) Schedule(ctx context.Context, campaign *core_domain.Campaign) (uuid.UUID, error) {
	jobID := uuid.New()
	payload := domain.CampaignJobPayload{JobID: jobID, CampaignID: campaign.ID}
	data, err := payload.ToJSON()
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal job payload: %w", err)
	}

	job := domain.NewScheduledJob(jobID, domain.JobTypeCampaignSend, data, campaign.ScheduledAt)
	if err := b.jobs.Create(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("create scheduled job: %w", err)
	}
	if err := b.campaigns.SetJobID(ctx, campaign.ID, uuid.NullUUID{UUID: jobID, Valid: true}); err != nil {
		return uuid.Nil, fmt.Errorf("record job handle on campaign: %w", err)
	}

	b.logger.InfoContext(ctx, "Campaign send scheduled", "campaign_id", campaign.ID, "job_id", jobID, "scheduled_at", campaign.ScheduledAt)
	return jobID, nil
}

// Cancel revokes the campaign's queue job. A job the poller already consumed
// cannot be revoked here; the sending service re-checks campaign status
// before sending, which makes such cancellations effective anyway.
func (b *SchedulerBridge) Cancel(ctx context.Context, campaign *core_domain.Campaign) error {
	if !campaign.JobID.Valid {
		return nil
	}
	err := b.jobs.CancelPending(ctx, campaign.JobID.UUID)
	if errors.Is(err, domain.ErrNotFound) {
		b.logger.InfoContext(ctx, "Job already consumed or gone, nothing to cancel in queue", "campaign_id", campaign.ID, "job_id", campaign.JobID.UUID)
		return nil
	}
	return err
}

// Reschedule moves the campaign's queue job to a new due time. If the job
// left the queue already, a fresh job is enqueued instead.
func (b *SchedulerBridge) Reschedule(ctx context.Context, campaign *core_domain.Campaign, scheduledAt time.Time) error {
	if campaign.JobID.Valid {
		err := b.jobs.UpdateScheduledAt(ctx, campaign.JobID.UUID, scheduledAt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}

	rescheduled := *campaign
	rescheduled.ScheduledAt = scheduledAt
	_, err := b.Schedule(ctx, &rescheduled)
	return err
}

// RecoverStranded re-enqueues future-scheduled campaigns that lost their job
// handle, e.g. after a crash between campaign create and job enqueue. Run on
// scheduler start.
func (b *SchedulerBridge) RecoverStranded(ctx context.Context) (int, error) {
	stranded, err := b.campaigns.ListStrandedScheduled(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("list stranded campaigns: %w", err)
	}

	recovered := 0
	for _, campaign := range stranded {
		if _, err := b.Schedule(ctx, campaign); err != nil {
			b.logger.ErrorContext(ctx, "Failed to recover stranded campaign", "campaign_id", campaign.ID, "error", err)
			continue
		}
		recovered++
	}
	if recovered > 0 {
		b.logger.InfoContext(ctx, "Recovered stranded campaigns", "count", recovered)
	}
	return recovered, nil
}
