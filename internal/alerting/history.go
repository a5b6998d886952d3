package alerting

import (
	"sync"

	"github.com/warden-sh/warden/internal/domain"
)

// history is a bounded, append-only record of sent alerts. The oldest
// entry is evicted when the cap is reached.
type history struct {
	mu     sync.RWMutex
	alerts []domain.Alert
	max    int
}

func newHistory(max int) *history {
	if max <= 0 {
		max = 1
	}
	return &history{max: max}
}

func (h *history) append(alert domain.Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.alerts = append(h.alerts, alert)
	if len(h.alerts) > h.max {
		h.alerts = h.alerts[len(h.alerts)-h.max:]
	}
}

// query returns matching alerts newest-first. Empty instanceID or level
// matches everything; limit <= 0 means no limit.
func (h *history) query(instanceID string, level domain.AlertLevel, limit int) []domain.Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []domain.Alert
	for i := len(h.alerts) - 1; i >= 0; i-- {
		a := h.alerts[i]
		if instanceID != "" && a.InstanceID != instanceID {
			continue
		}
		if level != "" && a.Level != level {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (h *history) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.alerts)
}

// clear removes all alerts, or only those for one instance
func (h *history) clear(instanceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if instanceID == "" {
		h.alerts = nil
		return
	}

	kept := h.alerts[:0]
	for _, a := range h.alerts {
		if a.InstanceID != instanceID {
			kept = append(kept, a)
		}
	}
	h.alerts = kept
}
