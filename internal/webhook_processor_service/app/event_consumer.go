package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
	"github.com/relayline/wabroadcast/internal/webhook_processor_service/domain"
)

// QueueGroup makes NATS deliver each raw webhook event to exactly one
// processor instance.
const QueueGroup = "webhook_processors"

// EventConsumer unpacks raw provider webhook envelopes from the bus and
// routes each change to the matching processor. Processing is best effort
// per change; one bad status update must not block the rest of the envelope.
type EventConsumer struct {
	statuses  *StatusProcessor
	responses *ResponseProcessor
	templates repository.TemplateRepository
	logger    *slog.Logger
}

func NewEventConsumer(statuses *StatusProcessor, responses *ResponseProcessor, templates repository.TemplateRepository, logger *slog.Logger) *EventConsumer {
	return &EventConsumer{
		statuses:  statuses,
		responses: responses,
		templates: templates,
		logger:    logger.With("component", "event_consumer"),
	}
}

// Handler returns the NATS message handler bound to ctx.
func (c *EventConsumer) Handler(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		c.handle(ctx, msg.Data)
	}
}

func (c *EventConsumer) handle(ctx context.Context, data []byte) {
	var payload domain.WebhookPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.ErrorContext(ctx, "Dropping undecodable webhook event", "error", err)
		eventsConsumedCounter.WithLabelValues("undecodable").Inc()
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			c.processChange(ctx, change)
		}
	}
	eventsConsumedCounter.WithLabelValues("processed").Inc()
}

func (c *EventConsumer) processChange(ctx context.Context, change domain.Change) {
	switch change.Field {
	case "messages":
		for _, status := range change.Value.Statuses {
			if err := c.statuses.Process(ctx, status); err != nil {
				c.logger.ErrorContext(ctx, "Status update processing failed", "provider_message_id", status.ID, "error", err)
			}
		}
		for _, inbound := range change.Value.Messages {
			profileName := profileNameFor(change.Value.Contacts, inbound.From)
			if err := c.responses.Process(ctx, inbound, profileName); err != nil {
				c.logger.ErrorContext(ctx, "Inbound message processing failed", "from", inbound.From, "error", err)
			}
		}

	case "message_template_status_update":
		c.applyTemplateVerdict(ctx, change.Value)

	default:
		// Other change kinds (account updates etc.) are not ours to handle.
		c.logger.InfoContext(ctx, "Ignoring webhook change", "field", change.Field)
	}
}

func (c *EventConsumer) applyTemplateVerdict(ctx context.Context, value domain.ChangeValue) {
	if value.MessageTemplateName == "" {
		return
	}
	var status core_domain.TemplateStatus
	switch strings.ToUpper(value.Event) {
	case "APPROVED":
		status = core_domain.TemplateStatusApproved
	case "REJECTED":
		status = core_domain.TemplateStatusRejected
	default:
		status = core_domain.TemplateStatusPending
	}
	err := c.templates.UpdateStatusByProviderName(ctx, value.MessageTemplateName, status)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		c.logger.ErrorContext(ctx, "Failed to apply template verdict", "template", value.MessageTemplateName, "error", err)
		return
	}
	c.logger.InfoContext(ctx, "Template verdict applied", "template", value.MessageTemplateName, "status", status)
}

func profileNameFor(contacts []domain.WebhookContact, waID string) string {
	for _, contact := range contacts {
		if contact.WaID == waID {
			return contact.Profile.Name
		}
	}
	if len(contacts) == 1 {
		return contacts[0].Profile.Name
	}
	return ""
}
