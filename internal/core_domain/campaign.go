package core_domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus tracks a campaign through its lifecycle. Transitions are
// monotonic: scheduled -> sending -> completed|failed, with an operator-only
// scheduled -> cancelled side exit.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// DefaultRateLimitPerMinute applies when a campaign is created without an
// explicit rate limit.
const DefaultRateLimitPerMinute = 1000

// TriggerSource records who or what created the campaign.
type TriggerSource string

const (
	TriggerManual     TriggerSource = "manual"
	TriggerAutomation TriggerSource = "automation"
	TriggerCalendar   TriggerSource = "calendar"
)

// CampaignProgress holds the aggregate per-campaign send counters.
// Total is set once when contacts are resolved and never decreases;
// Sent+Failed never exceeds Total.
type CampaignProgress struct {
	Total     int `json:"total"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Read      int `json:"read"`
	Failed    int `json:"failed"`
}

// Campaign is one scheduled bulk-send run of a template against a contact list.
type Campaign struct {
	ID                 uuid.UUID         `json:"id"`
	Name               string            `json:"name"`
	TemplateID         uuid.UUID         `json:"template_id"`
	ContactIDs         []uuid.UUID       `json:"contact_ids"`
	Variables          map[string]string `json:"variables,omitempty"`
	ScheduledAt        time.Time         `json:"scheduled_at"`
	Status             CampaignStatus    `json:"status"`
	RateLimitPerMinute int               `json:"rate_limit_per_minute"`
	Progress           CampaignProgress  `json:"progress"`
	// JobID is the deferred-queue handle; non-null only while Status is
	// scheduled, cleared on cancel/complete/fail.
	JobID       uuid.NullUUID `json:"job_id,omitempty"`
	TriggeredBy TriggerSource `json:"triggered_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewCampaign builds a draft campaign with defaults applied. The ID is
// generated here; scheduling happens separately through the scheduler bridge.
func NewCampaign(name string, templateID uuid.UUID, contactIDs []uuid.UUID, variables map[string]string, scheduledAt time.Time, rateLimit int, triggeredBy TriggerSource) *Campaign {
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimitPerMinute
	}
	if triggeredBy == "" {
		triggeredBy = TriggerManual
	}
	now := time.Now().UTC()
	return &Campaign{
		ID:                 uuid.New(),
		Name:               name,
		TemplateID:         templateID,
		ContactIDs:         contactIDs,
		Variables:          variables,
		ScheduledAt:        scheduledAt,
		Status:             CampaignStatusDraft,
		RateLimitPerMinute: rateLimit,
		TriggeredBy:        triggeredBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// DelayBetweenMessages derives the inter-message pause from the rate limit.
func (c *Campaign) DelayBetweenMessages() time.Duration {
	rate := c.RateLimitPerMinute
	if rate <= 0 {
		rate = DefaultRateLimitPerMinute
	}
	return time.Minute / time.Duration(rate)
}
