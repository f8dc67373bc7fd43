package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
	"github.com/relayline/wabroadcast/internal/webhook_processor_service/domain"
)

// StatusProcessor reconciles provider delivery callbacks with the optimistic
// counters the send loop wrote. Callbacks may arrive duplicated or out of
// order; applying one twice must not move any counter twice.
type StatusProcessor struct {
	messages      repository.MessageRepository
	campaigns     repository.CampaignRepository
	notifications repository.NotificationRepository
	logger        *slog.Logger
}

func NewStatusProcessor(
	messages repository.MessageRepository,
	campaigns repository.CampaignRepository,
	notifications repository.NotificationRepository,
	logger *slog.Logger,
) *StatusProcessor {
	return &StatusProcessor{
		messages:      messages,
		campaigns:     campaigns,
		notifications: notifications,
		logger:        logger.With("component", "status_processor"),
	}
}

var statusRank = map[core_domain.MessageStatus]int{
	core_domain.MessageStatusPending:   0,
	core_domain.MessageStatusSent:      1,
	core_domain.MessageStatusDelivered: 2,
	core_domain.MessageStatusRead:      3,
}

// Process applies one status callback. Unknown provider message ids are
// logged and dropped; a status we never sent can reference a message sent
// outside this system.
func (p *StatusProcessor) Process(ctx context.Context, update domain.StatusUpdate) error {
	newStatus, ok := mapProviderStatus(update.Status)
	if !ok {
		p.logger.WarnContext(ctx, "Unknown status value, ignoring", "status", update.Status, "provider_message_id", update.ID)
		statusUpdatesCounter.WithLabelValues(update.Status, "unknown_status").Inc()
		return nil
	}

	msg, err := p.messages.GetByProviderMessageID(ctx, update.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			p.logger.WarnContext(ctx, "Status callback for unknown message, ignoring", "provider_message_id", update.ID, "status", update.Status)
			statusUpdatesCounter.WithLabelValues(update.Status, "unknown_message").Inc()
			return nil
		}
		statusUpdatesCounter.WithLabelValues(update.Status, "error").Inc()
		return fmt.Errorf("load message by provider id: %w", err)
	}

	eventTime := parseEventTime(update.Timestamp)

	if newStatus == core_domain.MessageStatusFailed {
		return p.applyFailure(ctx, msg, update, eventTime)
	}

	if msg.Status == core_domain.MessageStatusFailed {
		statusUpdatesCounter.WithLabelValues(update.Status, "duplicate").Inc()
		return nil
	}

	// The status column only ever moves forward, but each status owns its
	// first-occurrence timestamp regardless of arrival order: a delivered
	// callback landing after read still records delivered_at.
	advances := statusRank[newStatus] > statusRank[msg.Status]
	firstSeen := false
	switch newStatus {
	case core_domain.MessageStatusSent:
		firstSeen = !msg.SentAt.Valid
	case core_domain.MessageStatusDelivered:
		firstSeen = !msg.DeliveredAt.Valid
	case core_domain.MessageStatusRead:
		firstSeen = !msg.ReadAt.Valid
	}

	if !advances && !firstSeen {
		statusUpdatesCounter.WithLabelValues(update.Status, "duplicate").Inc()
		return nil
	}

	if advances {
		if err := p.messages.ApplyStatusUpdate(ctx, msg.ID, newStatus, eventTime, sql.NullString{}); err != nil {
			statusUpdatesCounter.WithLabelValues(update.Status, "error").Inc()
			return fmt.Errorf("apply status update: %w", err)
		}
	} else {
		if err := p.messages.RecordStatusTimestamp(ctx, msg.ID, newStatus, eventTime); err != nil {
			statusUpdatesCounter.WithLabelValues(update.Status, "error").Inc()
			return fmt.Errorf("record status timestamp: %w", err)
		}
	}

	// Campaign counters move on the first occurrence only.
	delta := repository.ProgressDelta{}
	if newStatus == core_domain.MessageStatusDelivered && firstSeen {
		delta.Delivered = 1
	}
	if newStatus == core_domain.MessageStatusRead && firstSeen {
		delta.Read = 1
	}
	if delta != (repository.ProgressDelta{}) {
		if err := p.campaigns.IncrementProgress(ctx, msg.CampaignID, delta); err != nil {
			p.logger.ErrorContext(ctx, "Failed to increment campaign counters", "campaign_id", msg.CampaignID, "error", err)
		}
	}
	statusUpdatesCounter.WithLabelValues(update.Status, "applied").Inc()
	return nil
}

// applyFailure handles the failed callback: record the error on the message
// and, when the send loop already counted this message as sent, compensate
// the optimistic counter in the same atomic increment.
func (p *StatusProcessor) applyFailure(ctx context.Context, msg *core_domain.Message, update domain.StatusUpdate, eventTime time.Time) error {
	if msg.Status == core_domain.MessageStatusFailed {
		statusUpdatesCounter.WithLabelValues(update.Status, "duplicate").Inc()
		return nil
	}

	errorMessage := joinStatusErrors(update.Errors)
	err := p.messages.ApplyStatusUpdate(ctx, msg.ID, core_domain.MessageStatusFailed, eventTime,
		sql.NullString{String: errorMessage, Valid: errorMessage != ""})
	if err != nil {
		statusUpdatesCounter.WithLabelValues(update.Status, "error").Inc()
		return fmt.Errorf("apply failed status: %w", err)
	}

	delta := repository.ProgressDelta{Failed: 1}
	if statusRank[msg.Status] >= statusRank[core_domain.MessageStatusSent] {
		delta.Sent = -1
	}
	if err := p.campaigns.IncrementProgress(ctx, msg.CampaignID, delta); err != nil {
		p.logger.ErrorContext(ctx, "Failed to apply failure compensation", "campaign_id", msg.CampaignID, "error", err)
	}

	n := core_domain.NewNotification(core_domain.NotificationMessageFailed, "Message failed",
		fmt.Sprintf("Delivery to %s failed: %s", update.RecipientID, errorMessage), msg.CampaignID)
	if err := p.notifications.Create(ctx, n); err != nil {
		p.logger.ErrorContext(ctx, "Failed to persist failure notification", "error", err)
	}
	statusUpdatesCounter.WithLabelValues(update.Status, "applied").Inc()
	return nil
}

func mapProviderStatus(status string) (core_domain.MessageStatus, bool) {
	switch status {
	case "sent":
		return core_domain.MessageStatusSent, true
	case "delivered":
		return core_domain.MessageStatusDelivered, true
	case "read":
		return core_domain.MessageStatusRead, true
	case "failed":
		return core_domain.MessageStatusFailed, true
	default:
		return "", false
	}
}

// parseEventTime reads the provider's unix-seconds string, falling back to
// now for absent or malformed values.
func parseEventTime(timestamp string) time.Time {
	if secs, err := strconv.ParseInt(timestamp, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Now().UTC()
}

func joinStatusErrors(errs []domain.StatusError) string {
	if len(errs) == 0 {
		return "delivery failed"
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Message
		if msg == "" {
			msg = e.Title
		}
		parts = append(parts, fmt.Sprintf("%d: %s", e.Code, msg))
	}
	return strings.Join(parts, "; ")
}
