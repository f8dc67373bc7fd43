package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
	"github.com/relayline/wabroadcast/internal/webhook_processor_service/domain"
	"github.com/relayline/wabroadcast/internal/whatsapp"
)

// AutomationForwarder pushes an inbound response to the automation webhook.
type AutomationForwarder interface {
	Enabled() bool
	Forward(ctx context.Context, response *core_domain.Response, contact *core_domain.Contact) error
}

// ResponseProcessor turns inbound provider messages into Response records:
// find or create the contact, classify the message, link it to the most
// recent outbound message as best-effort context, and forward it to the
// automation webhook without blocking on the result.
type ResponseProcessor struct {
	contacts      repository.ContactRepository
	messages      repository.MessageRepository
	responses     repository.ResponseRepository
	notifications repository.NotificationRepository
	forwarder     AutomationForwarder
	normalizer    whatsapp.PhoneNormalizer
	logger        *slog.Logger

	forwardTimeout time.Duration
}

func NewResponseProcessor(
	contacts repository.ContactRepository,
	messages repository.MessageRepository,
	responses repository.ResponseRepository,
	notifications repository.NotificationRepository,
	forwarder AutomationForwarder,
	normalizer whatsapp.PhoneNormalizer,
	logger *slog.Logger,
) *ResponseProcessor {
	return &ResponseProcessor{
		contacts:       contacts,
		messages:       messages,
		responses:      responses,
		notifications:  notifications,
		forwarder:      forwarder,
		normalizer:     normalizer,
		logger:         logger.With("component", "response_processor"),
		forwardTimeout: 10 * time.Second,
	}
}

// Process handles one inbound message. profileName comes from the webhook's
// contacts block and may be empty.
func (p *ResponseProcessor) Process(ctx context.Context, msg domain.InboundMessage, profileName string) error {
	phone := p.normalizer.Normalize(msg.From)

	contact, err := p.findOrCreateContact(ctx, phone, profileName)
	if err != nil {
		return fmt.Errorf("find or create contact: %w", err)
	}

	response := p.classify(ctx, msg)
	response.FromPhone = phone
	response.ContactID = contact.ID
	response.ReceivedAt = parseEventTime(msg.Timestamp)

	// Best-effort link to the conversation that likely prompted this reply.
	if latest, err := p.messages.LatestOutboundForContact(ctx, contact.ID); err == nil {
		response.CampaignID = uuid.NullUUID{UUID: latest.CampaignID, Valid: true}
		response.MessageID = uuid.NullUUID{UUID: latest.ID, Valid: true}
	} else if !errors.Is(err, repository.ErrNotFound) {
		p.logger.ErrorContext(ctx, "Original-context lookup failed", "contact_id", contact.ID, "error", err)
	}

	if err := p.responses.Create(ctx, response); err != nil {
		return fmt.Errorf("persist response: %w", err)
	}
	responsesCounter.WithLabelValues(string(response.Type)).Inc()

	n := core_domain.NewNotification(core_domain.NotificationResponseReceived, "Response received",
		fmt.Sprintf("%s replied: %s", contact.Name, response.Content), response.CampaignID.UUID)
	if err := p.notifications.Create(ctx, n); err != nil {
		p.logger.ErrorContext(ctx, "Failed to persist response notification", "error", err)
	}

	p.forwardAsync(response, contact)
	return nil
}

func (p *ResponseProcessor) findOrCreateContact(ctx context.Context, phone, profileName string) (*core_domain.Contact, error) {
	contact, err := p.contacts.GetByPhone(ctx, phone)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	contact = core_domain.NewImplicitContact(phone, profileName)
	if err := p.contacts.Create(ctx, contact); err != nil {
		return nil, err
	}
	p.logger.InfoContext(ctx, "Created implicit contact from inbound message", "contact_id", contact.ID, "phone", phone)
	return contact, nil
}

// classify maps the provider message onto a Response. Message kinds this
// system has no use for (location, contacts, reactions) degrade to a text
// response with a bracketed kind marker so nothing is silently lost.
func (p *ResponseProcessor) classify(ctx context.Context, msg domain.InboundMessage) *core_domain.Response {
	response := &core_domain.Response{ID: uuid.New()}

	switch {
	case msg.Type == "text" && msg.Text != nil:
		response.Type = core_domain.ResponseTypeText
		response.Content = msg.Text.Body

	case msg.Type == "button" && msg.Button != nil:
		response.Type = core_domain.ResponseTypeButton
		response.Content = msg.Button.Text
		response.ButtonText = sql.NullString{String: msg.Button.Text, Valid: true}
		response.ButtonPayload = sql.NullString{String: msg.Button.Payload, Valid: msg.Button.Payload != ""}

	case msg.Type == "interactive" && msg.Interactive != nil:
		switch {
		case msg.Interactive.Type == "button_reply" && msg.Interactive.ButtonReply != nil:
			response.Type = core_domain.ResponseTypeButton
			response.Content = msg.Interactive.ButtonReply.Title
			response.ButtonText = sql.NullString{String: msg.Interactive.ButtonReply.Title, Valid: true}
			response.ButtonPayload = sql.NullString{String: msg.Interactive.ButtonReply.ID, Valid: msg.Interactive.ButtonReply.ID != ""}
		case msg.Interactive.Type == "list_reply" && msg.Interactive.ListReply != nil:
			response.Type = core_domain.ResponseTypeInteractive
			response.Content = msg.Interactive.ListReply.Title
			response.ButtonPayload = sql.NullString{String: msg.Interactive.ListReply.ID, Valid: msg.Interactive.ListReply.ID != ""}
		default:
			p.logger.WarnContext(ctx, "Unrecognized interactive reply", "interactive_type", msg.Interactive.Type)
			response.Type = core_domain.ResponseTypeInteractive
			response.Content = "[interactive]"
		}

	case msg.Type == "image" || msg.Type == "video" || msg.Type == "audio" || msg.Type == "document" || msg.Type == "sticker":
		response.Type = core_domain.ResponseTypeMedia
		response.Content = mediaContent(msg)

	default:
		p.logger.WarnContext(ctx, "Unrecognized inbound message type", "type", msg.Type)
		response.Type = core_domain.ResponseTypeText
		response.Content = "[" + msg.Type + "]"
	}
	return response
}

func mediaContent(msg domain.InboundMessage) string {
	var caption string
	switch {
	case msg.Image != nil:
		caption = msg.Image.Caption
	case msg.Video != nil:
		caption = msg.Video.Caption
	case msg.Document != nil:
		caption = msg.Document.Caption
	}
	if caption != "" {
		return caption
	}
	return "[" + msg.Type + "]"
}

// forwardAsync pushes the response to the automation webhook in the
// background. Forwarding is best effort; a failure is logged and the
// response stays unprocessed for a later sweep.
func (p *ResponseProcessor) forwardAsync(response *core_domain.Response, contact *core_domain.Contact) {
	if p.forwarder == nil || !p.forwarder.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.forwardTimeout)
		defer cancel()
		if err := p.forwarder.Forward(ctx, response, contact); err != nil {
			p.logger.Warn("Automation forward failed", "response_id", response.ID, "error", err)
			return
		}
		if err := p.responses.MarkProcessed(ctx, response.ID); err != nil {
			p.logger.Warn("Failed to mark response processed", "response_id", response.ID, "error", err)
		}
	}()
}
