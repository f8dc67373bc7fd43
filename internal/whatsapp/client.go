package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// SendResult is the normalized outcome of one dispatch attempt. Provider-level
// failures never surface as errors; they are folded into Success=false with
// the provider's message when one was parseable.
type SendResult struct {
	Success           bool
	ProviderMessageID string
	ErrorMessage      string
}

// sendResponse is the Cloud API success body; the id of the first created
// message descriptor becomes our external message id.
type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// apiError is the Cloud API structured error envelope.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// CatalogTemplate is one entry from the business account's template catalog.
type CatalogTemplate struct {
	Name       string          `json:"name"`
	Language   string          `json:"language"`
	Status     string          `json:"status"` // APPROVED, PENDING, REJECTED
	Category   string          `json:"category"`
	Components json.RawMessage `json:"components"`
}

type catalogResponse struct {
	Data []CatalogTemplate `json:"data"`
}

// textPayload is the request body for a plain text send.
type textPayload struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// Client talks to the WhatsApp Cloud API. Credentials are read-only after
// construction and shared process-wide.
type Client struct {
	logger            *slog.Logger
	httpClient        *http.Client
	baseURL           string
	accessToken       string
	phoneNumberID     string
	businessAccountID string
}

// NewClient validates configuration once at startup; per-send calls never
// fail for configuration reasons afterwards.
func NewClient(logger *slog.Logger, baseURL, accessToken, phoneNumberID, businessAccountID string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" || accessToken == "" || phoneNumberID == "" {
		return nil, errors.New("whatsapp client: base URL, access token and phone number id are required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		logger:            logger.With("component", "whatsapp_client"),
		httpClient:        httpClient,
		baseURL:           baseURL,
		accessToken:       accessToken,
		phoneNumberID:     phoneNumberID,
		businessAccountID: businessAccountID,
	}, nil
}

// SendTemplate dispatches one template message and normalizes the outcome.
func (c *Client) SendTemplate(ctx context.Context, payload *TemplatePayload) *SendResult {
	return c.post(ctx, payload, payload.To)
}

// SendText dispatches a plain text message; used by the automation bridge
// for replies outside any campaign.
func (c *Client) SendText(ctx context.Context, phone, body string) *SendResult {
	payload := &textPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               phone,
		Type:             "text",
		Text:             textBody{Body: body},
	}
	return c.post(ctx, payload, phone)
}

// ListTemplates fetches the business account's template catalog, used to
// reconcile local template approval status before campaigns send.
func (c *Client) ListTemplates(ctx context.Context) ([]CatalogTemplate, error) {
	if c.businessAccountID == "" {
		return nil, errors.New("whatsapp client: business account id not configured")
	}
	url := fmt.Sprintf("%s/%s/message_templates", c.baseURL, c.businessAccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build template catalog request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch template catalog: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read template catalog response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("template catalog request failed: %s", extractErrorMessage(body, resp.StatusCode))
	}

	var catalog catalogResponse
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, fmt.Errorf("decode template catalog: %w", err)
	}
	return catalog.Data, nil
}

func (c *Client) post(ctx context.Context, payload any, recipient string) *SendResult {
	reqBytes, err := json.Marshal(payload)
	if err != nil {
		return &SendResult{Success: false, ErrorMessage: fmt.Sprintf("marshal request: %v", err)}
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return &SendResult{Success: false, ErrorMessage: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Send request failed", "recipient", recipient, "error", err)
		return &SendResult{Success: false, ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to read send response", "recipient", recipient, "status_code", resp.StatusCode, "error", err)
		return &SendResult{Success: false, ErrorMessage: fmt.Sprintf("read response (status %d): %v", resp.StatusCode, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMsg := extractErrorMessage(respBody, resp.StatusCode)
		c.logger.WarnContext(ctx, "Provider rejected send", "recipient", recipient, "status_code", resp.StatusCode, "error", errMsg)
		return &SendResult{Success: false, ErrorMessage: errMsg}
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil || len(parsed.Messages) == 0 || parsed.Messages[0].ID == "" {
		c.logger.WarnContext(ctx, "Send succeeded but response carried no message id", "recipient", recipient, "body", string(respBody))
		return &SendResult{Success: false, ErrorMessage: "provider response missing message id"}
	}

	c.logger.InfoContext(ctx, "Message accepted by provider", "recipient", recipient, "provider_message_id", parsed.Messages[0].ID)
	return &SendResult{Success: true, ProviderMessageID: parsed.Messages[0].ID}
}

// extractErrorMessage prefers the provider's structured error message, falling
// back to the raw body when it is small, then to the bare status code.
func extractErrorMessage(body []byte, statusCode int) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	if len(body) > 0 && len(body) < 200 {
		return fmt.Sprintf("provider error (status %d): %s", statusCode, string(body))
	}
	return fmt.Sprintf("provider error (status %d)", statusCode)
}
