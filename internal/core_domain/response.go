package core_domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ResponseType classifies an inbound message from a contact.
type ResponseType string

const (
	ResponseTypeText        ResponseType = "text"
	ResponseTypeButton      ResponseType = "button"
	ResponseTypeInteractive ResponseType = "interactive"
	ResponseTypeMedia       ResponseType = "media"
)

// Response is an inbound message or button press. CampaignID/MessageID are a
// best-effort heuristic link to the most recent outbound message sent to the
// contact, not a guaranteed association.
type Response struct {
	ID            uuid.UUID      `json:"id"`
	FromPhone     string         `json:"from_phone"`
	ContactID     uuid.UUID      `json:"contact_id"`
	CampaignID    uuid.NullUUID  `json:"campaign_id,omitempty"`
	MessageID     uuid.NullUUID  `json:"message_id,omitempty"`
	Type          ResponseType   `json:"type"`
	Content       string         `json:"content"`
	ButtonPayload sql.NullString `json:"button_payload,omitempty"`
	ButtonText    sql.NullString `json:"button_text,omitempty"`
	Processed     bool           `json:"processed"`
	AutoResponded bool           `json:"auto_responded"`
	ReceivedAt    time.Time      `json:"received_at"`
}
