package core_domain

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageStatus follows one send attempt through the provider's delivery
// pipeline: pending -> sent -> delivered -> read, or failed.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Message records one send attempt to one contact. Created exactly once per
// contact per campaign run by the send loop; afterwards mutated only by the
// webhook reconciler. ProviderMessageID, when set, is unique across all
// messages and is the join key for asynchronous status callbacks.
type Message struct {
	ID                uuid.UUID       `json:"id"`
	CampaignID        uuid.UUID       `json:"campaign_id"`
	ContactID         uuid.UUID       `json:"contact_id"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	Status            MessageStatus   `json:"status"`
	ProviderMessageID sql.NullString  `json:"provider_message_id,omitempty"`
	SentAt            sql.NullTime    `json:"sent_at,omitempty"`
	DeliveredAt       sql.NullTime    `json:"delivered_at,omitempty"`
	ReadAt            sql.NullTime    `json:"read_at,omitempty"`
	ErrorMessage      sql.NullString  `json:"error_message,omitempty"`
	RetryCount        int             `json:"retry_count"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewSentMessage builds the record for a dispatch that the provider accepted.
func NewSentMessage(campaignID, contactID uuid.UUID, payload json.RawMessage, providerMessageID string) *Message {
	now := time.Now().UTC()
	return &Message{
		ID:                uuid.New(),
		CampaignID:        campaignID,
		ContactID:         contactID,
		Payload:           payload,
		Status:            MessageStatusSent,
		ProviderMessageID: sql.NullString{String: providerMessageID, Valid: providerMessageID != ""},
		SentAt:            sql.NullTime{Time: now, Valid: true},
		CreatedAt:         now,
	}
}

// NewFailedMessage builds the record for a dispatch the provider rejected.
func NewFailedMessage(campaignID, contactID uuid.UUID, payload json.RawMessage, errorMessage string) *Message {
	now := time.Now().UTC()
	return &Message{
		ID:           uuid.New(),
		CampaignID:   campaignID,
		ContactID:    contactID,
		Payload:      payload,
		Status:       MessageStatusFailed,
		ErrorMessage: sql.NullString{String: errorMessage, Valid: errorMessage != ""},
		CreatedAt:    now,
	}
}
