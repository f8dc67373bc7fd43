package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/platform/messagebroker"
	"github.com/relayline/wabroadcast/internal/repository"
	"github.com/relayline/wabroadcast/internal/whatsapp"
)

// Dispatcher is the provider surface the send loop needs. The concrete
// *whatsapp.Client satisfies it, tests substitute mocks.
type Dispatcher interface {
	SendTemplate(ctx context.Context, payload *whatsapp.TemplatePayload) *whatsapp.SendResult
}

// statusEvent and progressEvent are the shapes published on the campaign
// event subjects.
type statusEvent struct {
	CampaignID uuid.UUID                  `json:"campaign_id"`
	Status     core_domain.CampaignStatus `json:"status"`
	OccurredAt time.Time                  `json:"occurred_at"`
}

type progressEvent struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	ContactID  uuid.UUID `json:"contact_id"`
	Outcome    string    `json:"outcome"` // sent or failed
	OccurredAt time.Time `json:"occurred_at"`
}

// CampaignRunner executes the send loop for one campaign: resolve template
// and contacts, dispatch one template message per eligible contact with a
// rate-limit delay between sends, and record per-contact outcomes.
//
// A single contact failure never aborts the run. Only setup failures (bad
// template, no eligible contacts) fail the whole campaign.
type CampaignRunner struct {
	campaigns     repository.CampaignRepository
	contacts      repository.ContactRepository
	templates     repository.TemplateRepository
	messages      repository.MessageRepository
	notifications repository.NotificationRepository
	dispatcher    Dispatcher
	publisher     messagebroker.Publisher
	normalizer    whatsapp.PhoneNormalizer
	logger        *slog.Logger

	// sleep is replaceable so tests can observe delays without waiting.
	sleep       func(ctx context.Context, d time.Duration)
	sendTimeout time.Duration
}

func NewCampaignRunner(
	campaigns repository.CampaignRepository,
	contacts repository.ContactRepository,
	templates repository.TemplateRepository,
	messages repository.MessageRepository,
	notifications repository.NotificationRepository,
	dispatcher Dispatcher,
	publisher messagebroker.Publisher,
	normalizer whatsapp.PhoneNormalizer,
	logger *slog.Logger,
) *CampaignRunner {
	return &CampaignRunner{
		campaigns:     campaigns,
		contacts:      contacts,
		templates:     templates,
		messages:      messages,
		notifications: notifications,
		dispatcher:    dispatcher,
		publisher:     publisher,
		normalizer:    normalizer,
		logger:        logger.With("component", "campaign_runner"),
		sleep:         sleepWithContext,
		sendTimeout:   30 * time.Second,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Run executes the send loop. The returned error is non-nil for setup
// failures and context cancellation; per-contact dispatch failures are
// recorded and absorbed. Run never moves the campaign to failed itself: the
// job consumer retries failed runs and calls Fail once attempts run out.
func (r *CampaignRunner) Run(ctx context.Context, campaign *core_domain.Campaign) error {
	logger := r.logger.With("campaign_id", campaign.ID)

	tmpl, eligible, err := r.resolveSendInputs(ctx, campaign)
	if err != nil {
		logger.ErrorContext(ctx, "Campaign setup failed", "error", err)
		campaignRunsCounter.WithLabelValues("failed").Inc()
		return err
	}

	if err := r.campaigns.SetProgressTotal(ctx, campaign.ID, len(eligible)); err != nil {
		logger.ErrorContext(ctx, "Failed to set progress total", "error", err)
	}
	if err := r.campaigns.UpdateStatus(ctx, campaign.ID, core_domain.CampaignStatusSending); err != nil {
		logger.ErrorContext(ctx, "Failed to mark campaign sending", "error", err)
		campaignRunsCounter.WithLabelValues("failed").Inc()
		return fmt.Errorf("mark campaign sending: %w", err)
	}
	r.notify(ctx, core_domain.NotificationBroadcastStarted, "Broadcast started",
		fmt.Sprintf("Campaign %q started sending to %d contacts", campaign.Name, len(eligible)), campaign.ID)
	r.publishStatus(ctx, campaign.ID, core_domain.CampaignStatusSending)

	logger.InfoContext(ctx, "Send loop starting", "contacts", len(eligible), "rate_limit_per_minute", campaign.RateLimitPerMinute)

	delay := campaign.DelayBetweenMessages()
	for i, contact := range eligible {
		attempted := r.sendToContact(ctx, campaign, tmpl, contact)
		if attempted && i < len(eligible)-1 {
			r.sleep(ctx, delay)
		}
		if ctx.Err() != nil {
			// An interrupted run must not look completed. The error sends the
			// job back through the retry policy, and the per-contact message
			// rows make the re-run pick up where this one stopped.
			logger.WarnContext(ctx, "Send loop interrupted", "sent_so_far", i+1)
			campaignRunsCounter.WithLabelValues("interrupted").Inc()
			return fmt.Errorf("send loop interrupted: %w", ctx.Err())
		}
	}

	if err := r.campaigns.UpdateStatus(ctx, campaign.ID, core_domain.CampaignStatusCompleted); err != nil {
		logger.ErrorContext(ctx, "Failed to mark campaign completed", "error", err)
		return fmt.Errorf("mark campaign completed: %w", err)
	}
	r.notify(ctx, core_domain.NotificationBroadcastCompleted, "Broadcast completed",
		fmt.Sprintf("Campaign %q finished sending", campaign.Name), campaign.ID)
	r.publishStatus(ctx, campaign.ID, core_domain.CampaignStatusCompleted)
	campaignRunsCounter.WithLabelValues("completed").Inc()

	logger.InfoContext(ctx, "Send loop finished")
	return nil
}

// resolveSendInputs loads and validates the template and contact list.
func (r *CampaignRunner) resolveSendInputs(ctx context.Context, campaign *core_domain.Campaign) (*core_domain.Template, []*core_domain.Contact, error) {
	tmpl, err := r.templates.GetByID(ctx, campaign.TemplateID)
	if err != nil {
		return nil, nil, fmt.Errorf("template %s not found: %w", campaign.TemplateID, err)
	}
	if tmpl.Status != core_domain.TemplateStatusApproved {
		return nil, nil, fmt.Errorf("template %q is not approved (status %s)", tmpl.Name, tmpl.Status)
	}

	all, err := r.contacts.GetByIDs(ctx, campaign.ContactIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load contacts: %w", err)
	}
	eligible := make([]*core_domain.Contact, 0, len(all))
	for _, c := range all {
		if c.Eligible() {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, nil, fmt.Errorf("campaign has no eligible contacts")
	}
	return tmpl, eligible, nil
}

// sendToContact dispatches one message and records the outcome. It reports
// whether a dispatch was actually attempted (false when the contact was
// already messaged in a previous run of the same campaign).
func (r *CampaignRunner) sendToContact(ctx context.Context, campaign *core_domain.Campaign, tmpl *core_domain.Template, contact *core_domain.Contact) bool {
	logger := r.logger.With("campaign_id", campaign.ID, "contact_id", contact.ID)

	already, err := r.messages.HasMessageForContact(ctx, campaign.ID, contact.ID)
	if err != nil {
		logger.ErrorContext(ctx, "Idempotency check failed, sending anyway", "error", err)
	} else if already {
		logger.InfoContext(ctx, "Contact already messaged in this campaign, skipping")
		messagesDispatchedCounter.WithLabelValues("skipped").Inc()
		return false
	}

	toPhone := r.normalizer.Normalize(contact.Phone)
	payload := whatsapp.BuildTemplatePayload(tmpl, campaign.Variables, contact, toPhone)
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal payload", "error", err)
		payloadJSON = nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	timer := prometheus.NewTimer(dispatchDurationHist)
	result := r.dispatcher.SendTemplate(sendCtx, payload)
	timer.ObserveDuration()
	cancel()

	if result.Success {
		msg := core_domain.NewSentMessage(campaign.ID, contact.ID, payloadJSON, result.ProviderMessageID)
		if err := r.messages.Create(ctx, msg); err != nil {
			logger.ErrorContext(ctx, "Failed to persist sent message", "error", err)
		}
		if err := r.campaigns.IncrementProgress(ctx, campaign.ID, repository.ProgressDelta{Sent: 1}); err != nil {
			logger.ErrorContext(ctx, "Failed to increment sent counter", "error", err)
		}
		r.publishProgress(ctx, campaign.ID, contact.ID, "sent")
		messagesDispatchedCounter.WithLabelValues("sent").Inc()
		return true
	}

	logger.WarnContext(ctx, "Dispatch failed", "error_message", result.ErrorMessage, "phone", toPhone)
	msg := core_domain.NewFailedMessage(campaign.ID, contact.ID, payloadJSON, result.ErrorMessage)
	if err := r.messages.Create(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to persist failed message", "error", err)
	}
	if err := r.campaigns.IncrementProgress(ctx, campaign.ID, repository.ProgressDelta{Failed: 1}); err != nil {
		logger.ErrorContext(ctx, "Failed to increment failed counter", "error", err)
	}
	r.notify(ctx, core_domain.NotificationMessageFailed, "Message failed",
		fmt.Sprintf("Sending to %s failed: %s", contact.Phone, result.ErrorMessage), campaign.ID)
	r.publishProgress(ctx, campaign.ID, contact.ID, "failed")
	messagesDispatchedCounter.WithLabelValues("failed").Inc()
	return true
}

// Fail finalizes a campaign whose job ran out of retry attempts: the status
// moves to failed, a broadcast-failed notification is written, and a status
// event is published.
func (r *CampaignRunner) Fail(ctx context.Context, campaign *core_domain.Campaign, reason string) {
	r.logger.ErrorContext(ctx, "Campaign failed", "campaign_id", campaign.ID, "reason", reason)
	if err := r.campaigns.UpdateStatus(ctx, campaign.ID, core_domain.CampaignStatusFailed); err != nil {
		r.logger.ErrorContext(ctx, "Failed to mark campaign failed", "campaign_id", campaign.ID, "error", err)
	}
	r.notify(ctx, core_domain.NotificationBroadcastFailed, "Broadcast failed",
		fmt.Sprintf("Campaign %q failed: %s", campaign.Name, reason), campaign.ID)
	r.publishStatus(ctx, campaign.ID, core_domain.CampaignStatusFailed)
}

func (r *CampaignRunner) notify(ctx context.Context, kind core_domain.NotificationKind, title, body string, campaignID uuid.UUID) {
	n := core_domain.NewNotification(kind, title, body, campaignID)
	if err := r.notifications.Create(ctx, n); err != nil {
		r.logger.ErrorContext(ctx, "Failed to persist notification", "kind", kind, "error", err)
	}
}

func (r *CampaignRunner) publishStatus(ctx context.Context, campaignID uuid.UUID, status core_domain.CampaignStatus) {
	data, err := json.Marshal(statusEvent{CampaignID: campaignID, Status: status, OccurredAt: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := r.publisher.Publish(ctx, messagebroker.SubjectCampaignStatus, data); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish status event", "error", err)
	}
}

func (r *CampaignRunner) publishProgress(ctx context.Context, campaignID, contactID uuid.UUID, outcome string) {
	data, err := json.Marshal(progressEvent{CampaignID: campaignID, ContactID: contactID, Outcome: outcome, OccurredAt: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := r.publisher.Publish(ctx, messagebroker.SubjectCampaignProgress, data); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish progress event", "error", err)
	}
}
