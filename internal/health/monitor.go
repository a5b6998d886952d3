// Package health runs periodic composite health checks against watched
// instances and hands unhealthy ones to the recovery engine.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warden-sh/warden/internal/config"
	"github.com/warden-sh/warden/internal/domain"
	"github.com/warden-sh/warden/internal/metrics"
)

// RecoveryTrigger starts a recovery attempt for an instance. The call must
// return promptly; the work happens on the trigger's own goroutine.
type RecoveryTrigger interface {
	TriggerRecovery(instanceID, reason string)
}

// InstanceStore receives health updates for persistence elsewhere
type InstanceStore interface {
	UpdateHealth(ctx context.Context, instanceID string, level domain.HealthLevel) error
}

// Deps are the collaborators a Monitor probes and notifies. Processes is
// required, everything else is optional.
type Deps struct {
	Processes ProcessInspector
	Sessions  SessionProber
	Responder Responder
	Recovery  RecoveryTrigger
	Store     InstanceStore
}

// Monitor runs one check loop per watched instance
type Monitor struct {
	settings  config.MonitoringSettings
	processes ProcessInspector
	sessions  SessionProber
	responder Responder
	recovery  RecoveryTrigger
	store     InstanceStore
	overrides *config.OverrideStore
	logger    *slog.Logger
	metrics   metrics.Collector

	mu      sync.Mutex
	watched map[string]*watch
	stopped bool
}

type watch struct {
	inst   domain.Instance
	cancel context.CancelFunc
	done   chan struct{}

	// lastOverall is only touched by this instance's loop goroutine
	lastOverall domain.HealthLevel
}

// New creates a health monitor. Loops start when instances are watched.
func New(settings config.MonitoringSettings, deps Deps, logger *slog.Logger, collector metrics.Collector) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &Monitor{
		settings:  settings,
		processes: deps.Processes,
		sessions:  deps.Sessions,
		responder: deps.Responder,
		recovery:  deps.Recovery,
		store:     deps.Store,
		overrides: config.NewOverrideStore(),
		logger:    logger,
		metrics:   collector,
		watched:   make(map[string]*watch),
	}
}

// Overrides exposes the per-instance settings overrides
func (m *Monitor) Overrides() *config.OverrideStore {
	return m.overrides
}

// Watch starts a periodic check loop for the instance
func (m *Monitor) Watch(inst domain.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return domain.ErrShutdown
	}
	if _, exists := m.watched[inst.ID]; exists {
		return domain.ErrInstanceExists
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{
		inst:        inst,
		cancel:      cancel,
		done:        make(chan struct{}),
		lastOverall: domain.HealthUnknown,
	}
	m.watched[inst.ID] = w

	m.logger.Info("watching instance health", "instance_id", inst.ID)
	go m.loop(ctx, w)
	return nil
}

// Unwatch stops the check loop for the instance and waits for it to exit
func (m *Monitor) Unwatch(instanceID string) {
	m.mu.Lock()
	w, ok := m.watched[instanceID]
	if ok {
		delete(m.watched, instanceID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	w.cancel()
	<-w.done
}

// Stop cancels every check loop and blocks new watches
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	watched := make([]*watch, 0, len(m.watched))
	for _, w := range m.watched {
		watched = append(watched, w)
	}
	m.watched = make(map[string]*watch)
	m.mu.Unlock()

	for _, w := range watched {
		w.cancel()
		<-w.done
	}
}

func (m *Monitor) loop(ctx context.Context, w *watch) {
	defer close(w.done)

	for {
		resolved := m.overrides.Resolve(m.settings, w.inst.ID)

		if resolved.Enabled {
			m.runCycle(ctx, w, resolved)
		}

		interval := resolved.CheckInterval
		if interval <= 0 {
			interval = time.Second
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (m *Monitor) runCycle(ctx context.Context, w *watch, resolved config.MonitoringSettings) {
	report := m.check(ctx, w.inst, resolved)

	m.metrics.CheckPerformed(w.inst.ID, report.Overall)

	if m.store != nil {
		if err := m.store.UpdateHealth(ctx, w.inst.ID, report.Overall); err != nil {
			m.logger.Warn("persisting health status failed",
				"instance_id", w.inst.ID, "error", err)
		}
	}

	if report.Overall == domain.HealthUnhealthy {
		m.logger.Warn("instance unhealthy",
			"instance_id", w.inst.ID, "checks", summarize(report.Checks))

		// Hand off exactly once per transition into unhealthy
		if w.lastOverall != domain.HealthUnhealthy && m.recovery != nil {
			m.recovery.TriggerRecovery(w.inst.ID, summarize(report.Checks))
		}
	} else {
		m.logger.Debug("health check complete",
			"instance_id", w.inst.ID, "overall", report.Overall)
	}

	w.lastOverall = report.Overall
}

// CheckInstance runs one composite check cycle outside the periodic loop,
// honoring any overrides registered for the instance.
func (m *Monitor) CheckInstance(ctx context.Context, inst domain.Instance) domain.HealthReport {
	return m.check(ctx, inst, m.overrides.Resolve(m.settings, inst.ID))
}

func (m *Monitor) check(ctx context.Context, inst domain.Instance, resolved config.MonitoringSettings) domain.HealthReport {
	report := domain.HealthReport{
		InstanceID: inst.ID,
		Overall:    domain.HealthUnknown,
		CheckedAt:  time.Now(),
	}

	type probe struct {
		settings config.CheckSettings
		run      func(context.Context, domain.Instance) domain.CheckResult
	}
	probes := []probe{
		{resolved.Process, m.checkProcess},
		{resolved.Session, m.checkSession},
		{resolved.Workspace, m.checkWorkspace},
		{resolved.Responsiveness, m.checkResponsiveness},
	}

	for _, p := range probes {
		if !p.settings.Enabled {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, p.settings.Timeout)
		result := p.run(checkCtx, inst)
		cancel()

		report.Checks = append(report.Checks, result)
	}

	for i, res := range report.Checks {
		if i == 0 {
			report.Overall = res.Level
			continue
		}
		report.Overall = report.Overall.Worse(res.Level)
	}
	return report
}

func summarize(checks []domain.CheckResult) string {
	msg := ""
	for _, c := range checks {
		if c.Level == domain.HealthHealthy || c.Message == "" {
			continue
		}
		if msg != "" {
			msg += "; "
		}
		msg += string(c.Type) + ": " + c.Message
	}
	if msg == "" {
		msg = "all checks passed"
	}
	return msg
}
