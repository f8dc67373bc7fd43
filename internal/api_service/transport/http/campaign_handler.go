package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
)

// CampaignScheduler is the queue-side surface the handlers need. The
// scheduler bridge satisfies it; tests substitute mocks.
type CampaignScheduler interface {
	Schedule(ctx context.Context, campaign *core_domain.Campaign) (uuid.UUID, error)
	Cancel(ctx context.Context, campaign *core_domain.Campaign) error
	Reschedule(ctx context.Context, campaign *core_domain.Campaign, scheduledAt time.Time) error
}

type CampaignHandler struct {
	campaigns repository.CampaignRepository
	templates repository.TemplateRepository
	contacts  repository.ContactRepository
	scheduler CampaignScheduler
	logger    *slog.Logger
	validate  *validator.Validate
}

func NewCampaignHandler(
	campaigns repository.CampaignRepository,
	templates repository.TemplateRepository,
	contacts repository.ContactRepository,
	scheduler CampaignScheduler,
	logger *slog.Logger,
	validate *validator.Validate,
) *CampaignHandler {
	return &CampaignHandler{
		campaigns: campaigns,
		templates: templates,
		contacts:  contacts,
		scheduler: scheduler,
		logger:    logger,
		validate:  validate,
	}
}

func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var reqDTO CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.logger.WarnContext(ctx, "Failed to decode request body for CreateCampaign", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		h.logger.WarnContext(ctx, "Validation failed for CreateCampaign", "error", err)
		writeError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}

	campaign, status, errMsg := h.buildCampaign(r, reqDTO, core_domain.TriggerManual)
	if campaign == nil {
		writeError(w, status, errMsg, "")
		return
	}

	if err := h.campaigns.Create(ctx, campaign); err != nil {
		h.logger.ErrorContext(ctx, "Failed to persist campaign", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	if _, err := h.scheduler.Schedule(ctx, campaign); err != nil {
		// The campaign row exists without a job handle; the scheduler's
		// startup recovery re-enqueues it.
		h.logger.ErrorContext(ctx, "Failed to enqueue campaign job", "campaign_id", campaign.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Campaign stored but scheduling failed", "")
		return
	}

	h.logger.InfoContext(ctx, "Campaign scheduled", "campaign_id", campaign.ID, "scheduled_at", campaign.ScheduledAt)
	writeJSON(w, http.StatusCreated, toCampaignResponse(campaign))
}

// buildCampaign validates the referenced template and contacts and returns
// the campaign ready to persist, or nil with an HTTP status and message.
func (h *CampaignHandler) buildCampaign(r *http.Request, reqDTO CreateCampaignRequest, trigger core_domain.TriggerSource) (*core_domain.Campaign, int, string) {
	ctx := r.Context()

	templateID, err := uuid.Parse(reqDTO.TemplateID)
	if err != nil {
		return nil, http.StatusBadRequest, "Invalid template_id"
	}
	contactIDs := make([]uuid.UUID, 0, len(reqDTO.ContactIDs))
	for _, raw := range reqDTO.ContactIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, http.StatusBadRequest, "Invalid contact id: " + raw
		}
		contactIDs = append(contactIDs, id)
	}

	if _, err := h.templates.GetByID(ctx, templateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, http.StatusBadRequest, "Template not found"
		}
		h.logger.ErrorContext(ctx, "Failed to load template", "template_id", templateID, "error", err)
		return nil, http.StatusInternalServerError, "Internal server error"
	}

	contacts, err := h.contacts.GetByIDs(ctx, contactIDs)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load contacts", "error", err)
		return nil, http.StatusInternalServerError, "Internal server error"
	}
	eligible := 0
	for _, c := range contacts {
		if c.Eligible() {
			eligible++
		}
	}
	if eligible == 0 {
		return nil, http.StatusBadRequest, "Campaign has no eligible contacts"
	}

	campaign := core_domain.NewCampaign(reqDTO.Name, templateID, contactIDs, reqDTO.Variables,
		reqDTO.ScheduledAt.UTC(), reqDTO.RateLimitPerMinute, trigger)
	campaign.Status = core_domain.CampaignStatusScheduled
	return campaign, 0, ""
}

func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCampaignResponse(campaign))
}

func (h *CampaignHandler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaign, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}
	if campaign.Status != core_domain.CampaignStatusScheduled {
		writeError(w, http.StatusConflict, fmt.Sprintf("Campaign is %s, only scheduled campaigns can be cancelled", campaign.Status), "")
		return
	}

	if err := h.scheduler.Cancel(ctx, campaign); err != nil {
		h.logger.ErrorContext(ctx, "Failed to cancel campaign job", "campaign_id", campaign.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	if err := h.campaigns.UpdateStatus(ctx, campaign.ID, core_domain.CampaignStatusCancelled); err != nil {
		h.logger.ErrorContext(ctx, "Failed to mark campaign cancelled", "campaign_id", campaign.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	campaign.Status = core_domain.CampaignStatusCancelled
	campaign.JobID = uuid.NullUUID{}

	h.logger.InfoContext(ctx, "Campaign cancelled", "campaign_id", campaign.ID)
	writeJSON(w, http.StatusOK, toCampaignResponse(campaign))
}

func (h *CampaignHandler) RescheduleCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var reqDTO RescheduleCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}

	campaign, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}
	switch campaign.Status {
	case core_domain.CampaignStatusScheduled, core_domain.CampaignStatusCancelled:
	default:
		writeError(w, http.StatusConflict, fmt.Sprintf("Campaign is %s, only scheduled or cancelled campaigns can be rescheduled", campaign.Status), "")
		return
	}

	scheduledAt := reqDTO.ScheduledAt.UTC()
	if err := h.campaigns.UpdateScheduledAt(ctx, campaign.ID, scheduledAt); err != nil {
		h.logger.ErrorContext(ctx, "Failed to update campaign schedule", "campaign_id", campaign.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	// Rescheduling re-arms a cancelled campaign.
	if campaign.Status == core_domain.CampaignStatusCancelled {
		if err := h.campaigns.UpdateStatus(ctx, campaign.ID, core_domain.CampaignStatusScheduled); err != nil {
			h.logger.ErrorContext(ctx, "Failed to re-arm cancelled campaign", "campaign_id", campaign.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error", "")
			return
		}
		campaign.Status = core_domain.CampaignStatusScheduled
	}
	if err := h.scheduler.Reschedule(ctx, campaign, scheduledAt); err != nil {
		h.logger.ErrorContext(ctx, "Failed to reschedule campaign job", "campaign_id", campaign.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	campaign.ScheduledAt = scheduledAt

	h.logger.InfoContext(ctx, "Campaign rescheduled", "campaign_id", campaign.ID, "scheduled_at", scheduledAt)
	writeJSON(w, http.StatusOK, toCampaignResponse(campaign))
}

func (h *CampaignHandler) loadCampaign(w http.ResponseWriter, r *http.Request) (*core_domain.Campaign, bool) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "campaignID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid campaign id", "")
		return nil, false
	}
	campaign, err := h.campaigns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Campaign not found", "")
			return nil, false
		}
		h.logger.ErrorContext(ctx, "Failed to load campaign", "campaign_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return nil, false
	}
	return campaign, true
}

func toCampaignResponse(c *core_domain.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:                 c.ID.String(),
		Name:               c.Name,
		TemplateID:         c.TemplateID.String(),
		Status:             string(c.Status),
		ScheduledAt:        c.ScheduledAt,
		RateLimitPerMinute: c.RateLimitPerMinute,
		TriggeredBy:        string(c.TriggeredBy),
		Progress: CampaignProgressResponse{
			Total:     c.Progress.Total,
			Sent:      c.Progress.Sent,
			Delivered: c.Progress.Delivered,
			Read:      c.Progress.Read,
			Failed:    c.Progress.Failed,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, GenericErrorResponse{Error: message, Details: details})
}
