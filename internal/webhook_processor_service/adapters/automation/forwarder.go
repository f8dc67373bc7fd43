package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/relayline/wabroadcast/internal/core_domain"
)

// Forwarder posts inbound responses to an external automation webhook (n8n
// or similar). An empty webhook URL disables forwarding.
type Forwarder struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewForwarder(webhookURL string, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With("component", "automation_forwarder"),
	}
}

func (f *Forwarder) Enabled() bool {
	return f.webhookURL != ""
}

// forwardedResponse is the JSON shape the automation webhook receives.
type forwardedResponse struct {
	ResponseID    string `json:"response_id"`
	Type          string `json:"type"`
	Content       string `json:"content"`
	ButtonPayload string `json:"button_payload,omitempty"`
	FromPhone     string `json:"from_phone"`
	ContactID     string `json:"contact_id"`
	ContactName   string `json:"contact_name"`
	CampaignID    string `json:"campaign_id,omitempty"`
	ReceivedAt    string `json:"received_at"`
}

func (f *Forwarder) Forward(ctx context.Context, response *core_domain.Response, contact *core_domain.Contact) error {
	if !f.Enabled() {
		return nil
	}

	body := forwardedResponse{
		ResponseID:  response.ID.String(),
		Type:        string(response.Type),
		Content:     response.Content,
		FromPhone:   response.FromPhone,
		ContactID:   contact.ID.String(),
		ContactName: contact.Name,
		ReceivedAt:  response.ReceivedAt.UTC().Format(time.RFC3339),
	}
	if response.ButtonPayload.Valid {
		body.ButtonPayload = response.ButtonPayload.String
	}
	if response.CampaignID.Valid {
		body.CampaignID = response.CampaignID.UUID.String()
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal forwarded response: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to automation webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("automation webhook returned %d", resp.StatusCode)
	}
	return nil
}
