// Package ops serves the operational HTTP endpoints: prometheus metrics
// and a liveness summary.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warden-sh/warden/internal/config"
	"github.com/warden-sh/warden/internal/domain"
)

// ProcessLister is the read-only process view exposed on /healthz
type ProcessLister interface {
	ListProcesses() []domain.ProcessInfo
}

// Server is the ops HTTP endpoint
type Server struct {
	settings config.OpsSettings
	router   *chi.Mux
	logger   *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates the ops server. The gatherer may be nil when
// prometheus metrics are disabled; /metrics then reports 404.
func NewServer(settings config.OpsSettings, gatherer prometheus.Gatherer, lister ProcessLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", healthzHandler(lister))
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return &Server{
		settings: settings,
		router:   r,
		logger:   logger,
	}
}

func healthzHandler(lister ProcessLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}

		if lister != nil {
			procs := lister.ListProcesses()
			running := 0
			for _, p := range procs {
				if p.Status.IsRunning() {
					running++
				}
			}
			body["processes"] = len(procs)
			body["running"] = running
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Handler returns the underlying router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.settings.Host, s.settings.Port)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	server := s.httpServer
	s.mu.Unlock()

	s.logger.Info("ops server listening", "addr", s.Addr())
	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.httpServer
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
