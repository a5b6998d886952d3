package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/warden-sh/warden/internal/domain"
)

// FileHandler appends alerts to a file, one JSON record per line
type FileHandler struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewFileHandler creates a file handler, creating parent directories as
// needed
func NewFileHandler(path string, logger *slog.Logger) (*FileHandler, error) {
	if path == "" {
		return nil, fmt.Errorf("alert file path is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating alert file directory: %w", err)
		}
	}

	return &FileHandler{path: path, logger: logger}, nil
}

func (h *FileHandler) Name() string {
	return "file"
}

func (h *FileHandler) Deliver(ctx context.Context, alert domain.Alert) bool {
	data, err := json.Marshal(alert)
	if err != nil {
		h.logger.Warn("marshaling alert failed", "alert_id", alert.ID, "error", err)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		h.logger.Warn("opening alert file failed", "path", h.path, "error", err)
		return false
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		h.logger.Warn("writing alert failed", "path", h.path, "error", err)
		return false
	}
	return true
}
