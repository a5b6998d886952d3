package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warden-sh/warden/internal/alerting"
	"github.com/warden-sh/warden/internal/config"
	"github.com/warden-sh/warden/internal/domain"
	"github.com/warden-sh/warden/internal/health"
	"github.com/warden-sh/warden/internal/metrics"
	"github.com/warden-sh/warden/internal/ops"
	"github.com/warden-sh/warden/internal/procmanager"
	"github.com/warden-sh/warden/internal/recovery"
)

// runCmd supervises the workers declared in the config file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Spawn configured workers and supervise them until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSupervisor()
	},
}

func runSupervisor() error {
	logger := newLogger()
	cfg := config.Load(configPath, logger)

	// Resolve the active settings once, here at the process boundary
	monSettings, err := cfg.MonitoringSettings()
	if err != nil {
		return fmt.Errorf("resolving monitoring settings: %w", err)
	}
	recSettings, err := cfg.RecoverySettings()
	if err != nil {
		return fmt.Errorf("resolving recovery settings: %w", err)
	}
	alertSettings, err := cfg.AlertSettings()
	if err != nil {
		return fmt.Errorf("resolving alert settings: %w", err)
	}
	opsSettings := cfg.OpsSettings()

	collector := metrics.NewPrometheusCollector("")

	manager := procmanager.New(
		procmanager.NewExecRunner(),
		procmanager.NewResourceSampler(),
		logger, collector,
		procmanager.DefaultConfig(),
	)

	alerts, err := alerting.New(alertSettings, logger, collector)
	if err != nil {
		return fmt.Errorf("building alert manager: %w", err)
	}

	engine := recovery.New(recSettings, manager, alerts, logger, collector)

	monitor := health.New(monSettings, health.Deps{
		Processes: manager,
		Recovery:  engine,
	}, logger, collector)

	var opsServer *ops.Server
	if opsSettings.Enabled {
		opsServer = ops.NewServer(opsSettings, collector.Registry(), manager, logger)
		go func() {
			if err := opsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops server failed", "error", err)
			}
		}()
	}

	ctx := context.Background()
	configDir := resolveConfigDir(configPath)

	logger.Info("starting warden", "config", configPath, "workers", len(cfg.Workers))

	for _, id := range sortedWorkerIDs(cfg.Workers) {
		worker := cfg.Workers[id]

		env, err := config.LoadWorkerEnv(cfg.EnvFile, worker.EnvFile, worker.Env, configDir)
		if err != nil {
			logger.Error("loading worker env failed", "instance_id", id, "error", err)
			continue
		}

		info, err := manager.Spawn(ctx, domain.SpawnSpec{
			InstanceID: id,
			Command:    worker.Cmd,
			WorkingDir: worker.WorkDir,
			Env:        env,
		})
		if err != nil {
			logger.Error("spawning worker failed", "instance_id", id, "error", err)
			continue
		}
		logger.Info("worker started", "instance_id", id, "pid", info.PID)

		if monSettings.Enabled {
			if err := monitor.Watch(domain.Instance{
				ID:            id,
				SessionID:     worker.Session,
				WorkspacePath: worker.Workspace,
			}); err != nil {
				logger.Warn("watching worker failed", "instance_id", id, "error", err)
			}
		}
	}

	// Block until interrupted
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	monitor.Stop()
	engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if opsServer != nil {
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops server shutdown failed", "error", err)
		}
	}

	manager.CleanupAll(shutdownCtx)
	logger.Info("shutdown complete")
	return nil
}

func resolveConfigDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." {
		if abs, err := filepath.Abs(path); err == nil {
			dir = filepath.Dir(abs)
		}
	}
	return dir
}

func sortedWorkerIDs(workers map[string]config.WorkerConfig) []string {
	ids := make([]string, 0, len(workers))
	for id := range workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
