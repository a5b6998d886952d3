package alerting

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"github.com/warden-sh/warden/internal/config"
	"github.com/warden-sh/warden/internal/domain"
)

// EmailHandler sends alerts over SMTP
type EmailHandler struct {
	cfg    config.EmailConfig
	logger *slog.Logger
}

// NewEmailHandler creates an SMTP handler
func NewEmailHandler(cfg config.EmailConfig, logger *slog.Logger) *EmailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailHandler{cfg: cfg, logger: logger}
}

func (h *EmailHandler) Name() string {
	return "email"
}

func (h *EmailHandler) Deliver(ctx context.Context, alert domain.Alert) bool {
	if err := h.send(alert); err != nil {
		h.logger.Warn("email delivery failed",
			"host", h.cfg.Host, "alert_id", alert.ID, "error", err)
		return false
	}
	return true
}

func (h *EmailHandler) send(alert domain.Alert) error {
	addr := net.JoinHostPort(h.cfg.Host, fmt.Sprintf("%d", h.cfg.Port))

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("connecting to smtp server: %w", err)
	}
	defer client.Close()

	if h.cfg.StartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: h.cfg.Host}); err != nil {
			return fmt.Errorf("starting tls: %w", err)
		}
	}

	if h.cfg.Username != "" {
		auth := smtp.PlainAuth("", h.cfg.Username, h.cfg.Password, h.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}

	if err := client.Mail(h.cfg.From); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	for _, to := range h.cfg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("adding recipient %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("opening message body: %w", err)
	}
	if _, err := w.Write([]byte(h.message(alert))); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing message: %w", err)
	}

	return client.Quit()
}

func (h *EmailHandler) message(alert domain.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", h.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(h.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: [warden] %s alert for %s\r\n", strings.ToUpper(alert.Level.String()), alert.InstanceID)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", alert.Message)
	fmt.Fprintf(&b, "Alert:    %s\r\n", alert.ID)
	fmt.Fprintf(&b, "Instance: %s\r\n", alert.InstanceID)
	fmt.Fprintf(&b, "Time:     %s\r\n", alert.Timestamp.Format("2006-01-02 15:04:05 MST"))
	for k, v := range alert.Details {
		fmt.Fprintf(&b, "%s: %v\r\n", k, v)
	}
	return b.String()
}
