package http

import (
	"time"
)

// CreateCampaignRequest defines the structure for scheduling a broadcast.
type CreateCampaignRequest struct {
	Name               string            `json:"name" validate:"required,min=1,max=200"`
	TemplateID         string            `json:"template_id" validate:"required,uuid"`
	ContactIDs         []string          `json:"contact_ids" validate:"required,min=1,dive,uuid"`
	Variables          map[string]string `json:"variables,omitempty"`
	ScheduledAt        time.Time         `json:"scheduled_at" validate:"required"`
	RateLimitPerMinute int               `json:"rate_limit_per_minute,omitempty" validate:"omitempty,min=1,max=1000"`
}

// RescheduleCampaignRequest moves a scheduled campaign to a new time.
type RescheduleCampaignRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// CampaignResponse is the API shape of a campaign.
type CampaignResponse struct {
	ID                 string                   `json:"id"`
	Name               string                   `json:"name"`
	TemplateID         string                   `json:"template_id"`
	Status             string                   `json:"status"`
	ScheduledAt        time.Time                `json:"scheduled_at"`
	RateLimitPerMinute int                      `json:"rate_limit_per_minute"`
	TriggeredBy        string                   `json:"triggered_by"`
	Progress           CampaignProgressResponse `json:"progress"`
}

// CampaignProgressResponse carries the live campaign counters.
type CampaignProgressResponse struct {
	Total     int `json:"total"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Read      int `json:"read"`
	Failed    int `json:"failed"`
}

// SendResponseRequest sends a one-off text reply to a contact.
type SendResponseRequest struct {
	Phone      string `json:"phone" validate:"required,min=5,max=20"`
	Message    string `json:"message" validate:"required,min=1,max=4096"`
	ResponseID string `json:"response_id,omitempty" validate:"omitempty,uuid"`
}

// SendResponseResponse reports the provider outcome of a one-off send.
type SendResponseResponse struct {
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// CalendarEventRequest is the payload from the calendar integration. The
// description field carries a JSON-encoded campaign request.
type CalendarEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description" validate:"required"`
	StartTime   time.Time `json:"start_time"`
}

// calendarCampaignSpec is the JSON blob embedded in a calendar event
// description.
type calendarCampaignSpec struct {
	Name               string            `json:"name,omitempty"`
	TemplateID         string            `json:"template_id"`
	ContactIDs         []string          `json:"contact_ids"`
	Variables          map[string]string `json:"variables,omitempty"`
	ScheduledAt        *time.Time        `json:"scheduled_at,omitempty"`
	RateLimitPerMinute int               `json:"rate_limit_per_minute,omitempty"`
}

// TemplateSyncResponse reports the result of a catalog sync.
type TemplateSyncResponse struct {
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
}

// GenericErrorResponse for API errors.
type GenericErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
