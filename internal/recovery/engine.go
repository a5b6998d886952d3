// Package recovery restarts unhealthy instances with exponential backoff,
// bounded by a rolling attempt budget.
package recovery

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/warden-sh/warden/internal/config"
	"github.com/warden-sh/warden/internal/domain"
	"github.com/warden-sh/warden/internal/metrics"
)

// ProcessRestarter terminates and respawns an instance's worker process
type ProcessRestarter interface {
	Restart(ctx context.Context, instanceID string) (domain.ProcessInfo, error)
}

// Alerter reports recovery outcomes
type Alerter interface {
	Send(ctx context.Context, instanceID string, level domain.AlertLevel, message string, details map[string]any) domain.Alert
}

// Engine schedules recovery attempts. Each trigger runs on its own
// goroutine so it never blocks the health monitor's cycle.
type Engine struct {
	settings  config.RecoverySettings
	restarter ProcessRestarter
	alerts    Alerter
	logger    *slog.Logger
	metrics   metrics.Collector

	mu       sync.Mutex
	attempts map[string][]time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// New creates a recovery engine
func New(settings config.RecoverySettings, restarter ProcessRestarter, alerts Alerter, logger *slog.Logger, collector metrics.Collector) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		settings:  settings,
		restarter: restarter,
		alerts:    alerts,
		logger:    logger,
		metrics:   collector,
		attempts:  make(map[string][]time.Time),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// TriggerRecovery starts a recovery attempt for the instance in the
// background and returns immediately
func (e *Engine) TriggerRecovery(instanceID, reason string) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.recover(instanceID, reason)
	}()
}

// Stop cancels pending backoff waits and blocks until all in-flight
// recoveries have finished
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
}

// AttemptsInWindow returns how many recovery attempts for the instance
// fall within the rolling time window
func (e *Engine) AttemptsInWindow(instanceID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.prune(instanceID, e.now()))
}

func (e *Engine) recover(instanceID, reason string) {
	attemptIndex, ok := e.recordAttempt(instanceID)
	if !ok {
		e.metrics.RecoveryExhausted(instanceID)
		e.logger.Error("recovery budget exhausted",
			"instance_id", instanceID,
			"max_attempts", e.settings.MaxAttempts,
			"window", e.settings.TimeWindow)
		e.alerts.Send(e.ctx, instanceID, domain.AlertCritical,
			"recovery budget exhausted, manual intervention required",
			map[string]any{
				"reason":       reason,
				"max_attempts": e.settings.MaxAttempts,
				"window":       e.settings.TimeWindow.String(),
			})
		return
	}

	delay := e.backoff(attemptIndex)
	e.metrics.RecoveryBackoff(instanceID, delay)
	e.alerts.Send(e.ctx, instanceID, domain.AlertWarning,
		"recovery attempt starting",
		map[string]any{
			"reason":  reason,
			"attempt": attemptIndex + 1,
			"delay":   delay.String(),
		})
	e.logger.Info("recovery scheduled",
		"instance_id", instanceID, "attempt", attemptIndex+1, "delay", delay)

	timer := time.NewTimer(delay)
	select {
	case <-e.ctx.Done():
		timer.Stop()
		return
	case <-timer.C:
	}

	e.metrics.RecoveryAttempt(instanceID)

	info, err := e.restarter.Restart(e.ctx, instanceID)
	if err != nil {
		e.logger.Error("recovery restart failed",
			"instance_id", instanceID, "attempt", attemptIndex+1, "error", err)
		e.alerts.Send(e.ctx, instanceID, domain.AlertError,
			"recovery restart failed",
			map[string]any{"attempt": attemptIndex + 1, "error": err.Error()})
		return
	}

	e.logger.Info("recovery restart succeeded",
		"instance_id", instanceID, "attempt", attemptIndex+1, "pid", info.PID)
	e.alerts.Send(e.ctx, instanceID, domain.AlertInfo,
		"recovery restart succeeded",
		map[string]any{"attempt": attemptIndex + 1, "pid": info.PID})
}

// recordAttempt checks the rolling budget and records a new attempt
// timestamp when it allows one. The returned index counts prior attempts
// still inside the window.
func (e *Engine) recordAttempt(instanceID string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	recent := e.prune(instanceID, now)

	if len(recent) >= e.settings.MaxAttempts {
		return 0, false
	}

	index := len(recent)
	e.attempts[instanceID] = append(recent, now)
	return index, true
}

// prune drops attempt timestamps that have aged out of the window.
// Callers must hold e.mu.
func (e *Engine) prune(instanceID string, now time.Time) []time.Time {
	cutoff := now.Add(-e.settings.TimeWindow)

	recent := e.attempts[instanceID][:0]
	for _, ts := range e.attempts[instanceID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	e.attempts[instanceID] = recent
	return recent
}

func (e *Engine) backoff(attemptIndex int) time.Duration {
	delay := time.Duration(float64(e.settings.BaseDelay) *
		math.Pow(e.settings.BackoffMultiplier, float64(attemptIndex)))
	if delay > e.settings.MaxDelay || delay < 0 {
		delay = e.settings.MaxDelay
	}
	return delay
}
