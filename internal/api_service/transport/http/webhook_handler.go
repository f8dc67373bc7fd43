package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/relayline/wabroadcast/internal/platform/messagebroker"
)

// maxWebhookBody caps what the provider may post to us.
const maxWebhookBody = 1 << 20

// WebhookHandler terminates the provider's webhook: GET answers the
// subscription verification challenge, POST forwards the raw payload to the
// bus. The provider retries and eventually disables webhooks that do not
// answer 200 promptly, so POST never blocks on processing and never reports
// processing failures.
type WebhookHandler struct {
	verifyToken string
	publisher   messagebroker.Publisher
	logger      *slog.Logger
}

func NewWebhookHandler(verifyToken string, publisher messagebroker.Publisher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		publisher:   publisher,
		logger:      logger,
	}
}

func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		h.logger.InfoContext(r.Context(), "Webhook verification succeeded")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}
	h.logger.WarnContext(r.Context(), "Webhook verification rejected", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to read webhook body", "error", err)
	} else if err := h.publisher.Publish(ctx, messagebroker.SubjectWhatsAppEventsRaw, body); err != nil {
		h.logger.ErrorContext(ctx, "Failed to publish webhook event", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("EVENT_RECEIVED"))
}
