package core_domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind names the user-facing event a notification records.
type NotificationKind string

const (
	NotificationBroadcastStarted   NotificationKind = "broadcast_started"
	NotificationBroadcastCompleted NotificationKind = "broadcast_completed"
	NotificationBroadcastFailed    NotificationKind = "broadcast_failed"
	NotificationMessageFailed      NotificationKind = "message_failed"
	NotificationResponseReceived   NotificationKind = "response_received"
)

// Notification is a write-once user-facing event record, created as a side
// effect of send-loop and reconciler transitions.
type Notification struct {
	ID         uuid.UUID        `json:"id"`
	Kind       NotificationKind `json:"kind"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	CampaignID uuid.NullUUID    `json:"campaign_id,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// NewNotification builds a notification; campaignID may be uuid.Nil for
// events not tied to a campaign.
func NewNotification(kind NotificationKind, title, body string, campaignID uuid.UUID) *Notification {
	return &Notification{
		ID:         uuid.New(),
		Kind:       kind,
		Title:      title,
		Body:       body,
		CampaignID: uuid.NullUUID{UUID: campaignID, Valid: campaignID != uuid.Nil},
		CreatedAt:  time.Now().UTC(),
	}
}
