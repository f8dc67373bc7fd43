package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/relayline/wabroadcast/internal/core_domain"
)

// CalendarHandler accepts calendar-integration webhooks. The calendar event's
// description carries a JSON campaign spec; the event becomes a campaign
// scheduled at the event start time unless the spec says otherwise.
type CalendarHandler struct {
	campaigns *CampaignHandler
	logger    *slog.Logger
	validate  *validator.Validate
}

func NewCalendarHandler(campaigns *CampaignHandler, logger *slog.Logger, validate *validator.Validate) *CalendarHandler {
	return &CalendarHandler{
		campaigns: campaigns,
		logger:    logger,
		validate:  validate,
	}
}

func (h *CalendarHandler) ReceiveEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var event CalendarEventRequest
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if err := h.validate.StructCtx(ctx, event); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}

	var spec calendarCampaignSpec
	if err := json.Unmarshal([]byte(event.Description), &spec); err != nil {
		h.logger.WarnContext(ctx, "Calendar event description is not a campaign spec", "title", event.Title, "error", err)
		writeError(w, http.StatusBadRequest, "Event description is not a valid campaign spec", err.Error())
		return
	}

	scheduledAt := event.StartTime
	if spec.ScheduledAt != nil {
		scheduledAt = *spec.ScheduledAt
	}
	if scheduledAt.IsZero() {
		writeError(w, http.StatusBadRequest, "No scheduled time on event or spec", "")
		return
	}
	name := spec.Name
	if name == "" {
		name = event.Title
	}

	reqDTO := CreateCampaignRequest{
		Name:               name,
		TemplateID:         spec.TemplateID,
		ContactIDs:         spec.ContactIDs,
		Variables:          spec.Variables,
		ScheduledAt:        scheduledAt,
		RateLimitPerMinute: spec.RateLimitPerMinute,
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}

	campaign, status, errMsg := h.campaigns.buildCampaign(r, reqDTO, core_domain.TriggerCalendar)
	if campaign == nil {
		writeError(w, status, errMsg, "")
		return
	}
	if err := h.campaigns.campaigns.Create(ctx, campaign); err != nil {
		h.logger.ErrorContext(ctx, "Failed to persist calendar campaign", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	if _, err := h.campaigns.scheduler.Schedule(ctx, campaign); err != nil {
		h.logger.ErrorContext(ctx, "Failed to enqueue calendar campaign job", "campaign_id", campaign.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Campaign stored but scheduling failed", "")
		return
	}

	h.logger.InfoContext(ctx, "Calendar campaign scheduled", "campaign_id", campaign.ID, "scheduled_at", scheduledAt.Format(time.RFC3339))
	writeJSON(w, http.StatusCreated, toCampaignResponse(campaign))
}
