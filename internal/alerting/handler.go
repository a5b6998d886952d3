package alerting

import (
	"context"
	"log/slog"

	"github.com/warden-sh/warden/internal/domain"
)

// Handler attempts delivery of one alert and reports success. Handlers
// never return errors; a failed delivery is logged by the manager and
// delivery continues with the remaining handlers.
type Handler interface {
	Name() string
	Deliver(ctx context.Context, alert domain.Alert) bool
}

// LogHandler writes alerts to the structured log
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a handler that logs alerts. CRITICAL alerts log at
// error level, everything else maps 1:1.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Name() string {
	return "log"
}

func (h *LogHandler) Deliver(ctx context.Context, alert domain.Alert) bool {
	attrs := []any{
		"alert_id", alert.ID,
		"instance_id", alert.InstanceID,
		"level", alert.Level,
	}
	if len(alert.Details) > 0 {
		attrs = append(attrs, "details", alert.Details)
	}

	switch alert.Level {
	case domain.AlertCritical, domain.AlertError:
		h.logger.Error(alert.Message, attrs...)
	case domain.AlertWarning:
		h.logger.Warn(alert.Message, attrs...)
	default:
		h.logger.Info(alert.Message, attrs...)
	}
	return true
}
