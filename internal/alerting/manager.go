// Package alerting delivers structured alerts through pluggable handlers
// and keeps a bounded in-memory history.
package alerting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warden-sh/warden/internal/config"
	"github.com/warden-sh/warden/internal/domain"
	"github.com/warden-sh/warden/internal/metrics"
)

// Manager fans alerts out to the registered handlers. Handler failures are
// logged and never interrupt delivery to the remaining handlers; exactly
// one alert is recorded in history per send.
type Manager struct {
	settings config.AlertSettings
	logger   *slog.Logger
	metrics  metrics.Collector
	history  *history

	mu       sync.RWMutex
	handlers []Handler
	lastSent map[string]time.Time
}

// New creates an alert manager with the handlers implied by the settings
func New(settings config.AlertSettings, logger *slog.Logger, collector metrics.Collector) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}

	m := &Manager{
		settings: settings,
		logger:   logger,
		metrics:  collector,
		history:  newHistory(settings.MaxHistory),
		lastSent: make(map[string]time.Time),
	}

	if settings.LogAlerts {
		m.handlers = append(m.handlers, NewLogHandler(logger))
	}
	if settings.FileAlerts {
		fh, err := NewFileHandler(settings.FilePath, logger)
		if err != nil {
			return nil, err
		}
		m.handlers = append(m.handlers, fh)
	}
	if settings.WebhookAlerts {
		m.handlers = append(m.handlers, NewWebhookHandler(settings.WebhookURL, settings.WebhookTimeout, logger))
	}
	if settings.EmailAlerts && settings.Email != nil {
		m.handlers = append(m.handlers, NewEmailHandler(*settings.Email, logger))
	}

	return m, nil
}

// Send builds an alert and dispatches it to every registered handler. The
// alert is always appended to history, even when every handler fails or
// the cooldown suppresses dispatch.
func (m *Manager) Send(ctx context.Context, instanceID string, level domain.AlertLevel, message string, details map[string]any) domain.Alert {
	alert := domain.NewAlert(instanceID, level, message, details)

	m.history.append(alert)

	if !m.settings.Enabled {
		return alert
	}
	if m.inCooldown(instanceID, level, alert.Timestamp) {
		m.logger.Debug("alert suppressed by cooldown",
			"instance_id", instanceID, "level", level)
		return alert
	}

	for _, h := range m.snapshotHandlers() {
		ok := h.Deliver(ctx, alert)
		m.metrics.AlertDelivered(h.Name(), ok)
		if !ok {
			m.logger.Warn("alert handler failed",
				"handler", h.Name(), "alert_id", alert.ID, "instance_id", instanceID)
		}
	}
	return alert
}

// inCooldown reports whether dispatch for (instance, level) is suppressed,
// recording the dispatch time when it is not
func (m *Manager) inCooldown(instanceID string, level domain.AlertLevel, now time.Time) bool {
	if m.settings.Cooldown <= 0 {
		return false
	}

	key := instanceID + "/" + string(level)

	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.lastSent[key]; ok && now.Sub(last) < m.settings.Cooldown {
		return true
	}
	m.lastSent[key] = now
	return false
}

// snapshotHandlers copies the handler set so runtime mutation never
// affects an in-flight delivery
func (m *Manager) snapshotHandlers() []Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Handler(nil), m.handlers...)
}

// AddHandler registers a handler for subsequent sends
func (m *Manager) AddHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// RemoveHandler unregisters all handlers with the given name
func (m *Manager) RemoveHandler(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.handlers[:0]
	for _, h := range m.handlers {
		if h.Name() != name {
			kept = append(kept, h)
		}
	}
	m.handlers = kept
}

// Handlers returns the names of the registered handlers
func (m *Manager) Handlers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.handlers))
	for _, h := range m.handlers {
		names = append(names, h.Name())
	}
	return names
}

// History returns matching alerts newest-first. Empty instanceID or level
// matches everything; limit <= 0 means no limit.
func (m *Manager) History(instanceID string, level domain.AlertLevel, limit int) []domain.Alert {
	return m.history.query(instanceID, level, limit)
}

// ClearHistory removes all recorded alerts, or only those for one
// instance when instanceID is non-empty
func (m *Manager) ClearHistory(instanceID string) {
	m.history.clear(instanceID)
}
