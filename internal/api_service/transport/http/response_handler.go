package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/relayline/wabroadcast/internal/repository"
	"github.com/relayline/wabroadcast/internal/whatsapp"
)

// TextSender is the provider surface for one-off text replies.
type TextSender interface {
	SendText(ctx context.Context, phone, body string) *whatsapp.SendResult
}

// ResponseHandler sends manual or automated text replies to contacts,
// typically triggered by an automation flow reacting to an inbound response.
type ResponseHandler struct {
	sender     TextSender
	responses  repository.ResponseRepository
	normalizer whatsapp.PhoneNormalizer
	logger     *slog.Logger
	validate   *validator.Validate
}

func NewResponseHandler(sender TextSender, responses repository.ResponseRepository, normalizer whatsapp.PhoneNormalizer, logger *slog.Logger, validate *validator.Validate) *ResponseHandler {
	return &ResponseHandler{
		sender:     sender,
		responses:  responses,
		normalizer: normalizer,
		logger:     logger,
		validate:   validate,
	}
}

func (h *ResponseHandler) SendResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var reqDTO SendResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}

	phone := h.normalizer.Normalize(reqDTO.Phone)
	result := h.sender.SendText(ctx, phone, reqDTO.Message)
	if !result.Success {
		h.logger.WarnContext(ctx, "One-off text send failed", "phone", phone, "error_message", result.ErrorMessage)
		writeJSON(w, http.StatusBadGateway, SendResponseResponse{Success: false, ErrorMessage: result.ErrorMessage})
		return
	}

	// When the reply answers a recorded inbound response, mark that response
	// as auto-responded.
	if reqDTO.ResponseID != "" {
		if responseID, err := uuid.Parse(reqDTO.ResponseID); err == nil {
			if err := h.responses.MarkAutoResponded(ctx, responseID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				h.logger.ErrorContext(ctx, "Failed to mark response auto-responded", "response_id", responseID, "error", err)
			}
		}
	}

	h.logger.InfoContext(ctx, "One-off text sent", "phone", phone, "provider_message_id", result.ProviderMessageID)
	writeJSON(w, http.StatusOK, SendResponseResponse{Success: true, ProviderMessageID: result.ProviderMessageID})
}
