package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/warden-sh/warden/internal/domain"
)

// WebhookHandler POSTs alerts as JSON to an HTTP endpoint
type WebhookHandler struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookHandler creates a webhook handler with a bounded request
// timeout
func NewWebhookHandler(url string, timeout time.Duration, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookHandler{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (h *WebhookHandler) Name() string {
	return "webhook"
}

func (h *WebhookHandler) Deliver(ctx context.Context, alert domain.Alert) bool {
	payload, err := json.Marshal(alert)
	if err != nil {
		h.logger.Warn("marshaling alert failed", "alert_id", alert.ID, "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		h.logger.Warn("building webhook request failed", "url", h.url, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("webhook request failed", "url", h.url, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.logger.Warn("webhook returned non-2xx status",
			"url", h.url, "status", resp.StatusCode)
		return false
	}
	return true
}
