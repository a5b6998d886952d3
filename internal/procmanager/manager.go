package procmanager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/warden-sh/warden/internal/constants"
	"github.com/warden-sh/warden/internal/domain"
	"github.com/warden-sh/warden/internal/metrics"
)

// Config holds timing configuration for the process manager
type Config struct {
	// PollInterval is how often a monitoring loop checks liveness
	PollInterval time.Duration
	// SampleInterval is how often resource usage is refreshed
	SampleInterval time.Duration
	// TerminateTimeout is the default grace period before a forced kill
	TerminateTimeout time.Duration
	// ShutdownTimeout bounds per-process termination during CleanupAll
	ShutdownTimeout time.Duration
}

// DefaultConfig returns default timing configuration
func DefaultConfig() Config {
	return Config{
		PollInterval:     constants.DefaultPollInterval,
		SampleInterval:   constants.DefaultSampleInterval,
		TerminateTimeout: constants.DefaultTerminateTimeout,
		ShutdownTimeout:  constants.DefaultShutdownTimeout,
	}
}

// trackedProcess is the registry entry for one instance. The spawn spec is
// immutable after spawn; info is mutated under mu, normally only by the
// owning monitoring goroutine.
type trackedProcess struct {
	mu   sync.RWMutex
	info domain.ProcessInfo
	spec domain.SpawnSpec
	proc Process

	// cancel stops the monitoring goroutine; cancelling a finished one
	// is a no-op
	cancel context.CancelFunc
	// exited is closed by the wait goroutine when the process exits
	exited chan struct{}
	// waitErr is valid once exited is closed
	waitErr error
	// done is closed when the monitoring goroutine returns
	done chan struct{}
}

func (tp *trackedProcess) snapshot() domain.ProcessInfo {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.info.Clone()
}

// hasExited reports whether the OS process has exited
func (tp *trackedProcess) hasExited() bool {
	select {
	case <-tp.exited:
		return true
	default:
		return false
	}
}

// Manager spawns, monitors, and terminates worker processes. It owns the
// instance registry; at most one tracked process exists per instance id.
type Manager struct {
	mu    sync.RWMutex
	procs map[string]*trackedProcess

	runner   ProcessRunner
	sampler  ResourceSampler
	logger   *slog.Logger
	metrics  metrics.Collector
	shutdown *ShutdownSignal
	cfg      Config
}

// New creates a process manager. A nil runner, sampler, or collector falls
// back to the OS-backed runner, the gopsutil sampler, and the no-op
// collector respectively.
func New(runner ProcessRunner, sampler ResourceSampler, logger *slog.Logger, collector metrics.Collector, cfg Config) *Manager {
	if runner == nil {
		runner = NewExecRunner()
	}
	if sampler == nil {
		sampler = NewResourceSampler()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = constants.DefaultSampleInterval
	}
	if cfg.TerminateTimeout <= 0 {
		cfg.TerminateTimeout = constants.DefaultTerminateTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = constants.DefaultShutdownTimeout
	}

	return &Manager{
		procs:    make(map[string]*trackedProcess),
		runner:   runner,
		sampler:  sampler,
		logger:   logger,
		metrics:  collector,
		shutdown: NewShutdownSignal(),
		cfg:      cfg,
	}
}

// Shutdown returns the shared shutdown signal observed by the monitoring
// loops
func (m *Manager) Shutdown() *ShutdownSignal {
	return m.shutdown
}

// Spawn starts a worker process for an instance and launches its
// monitoring goroutine. It fails when the instance is already tracked.
func (m *Manager) Spawn(ctx context.Context, spec domain.SpawnSpec) (domain.ProcessInfo, error) {
	if spec.InstanceID == "" {
		return domain.ProcessInfo{}, fmt.Errorf("%w: empty instance id", domain.ErrInvalidConfig)
	}

	m.mu.Lock()
	if m.shutdown.Triggered() {
		m.mu.Unlock()
		return domain.ProcessInfo{}, domain.ErrShutdown
	}
	if _, ok := m.procs[spec.InstanceID]; ok {
		m.mu.Unlock()
		return domain.ProcessInfo{}, fmt.Errorf("%w: %s", domain.ErrInstanceExists, spec.InstanceID)
	}

	// Reserve the slot before the blocking spawn so a concurrent Spawn
	// with the same id fails immediately.
	tp := &trackedProcess{
		info: domain.ProcessInfo{
			InstanceID: spec.InstanceID,
			Status:     domain.ProcessStatusStarting,
			Command:    spec.Command,
			WorkingDir: spec.WorkingDir,
			Env:        spec.Env,
		},
		spec:   spec,
		exited: make(chan struct{}),
		done:   make(chan struct{}),
	}
	m.procs[spec.InstanceID] = tp
	tracked := len(m.procs)
	m.mu.Unlock()
	m.metrics.ProcessesTracked(tracked)

	if spec.WorkingDir != "" {
		if err := os.MkdirAll(spec.WorkingDir, 0o755); err != nil {
			m.untrack(spec.InstanceID)
			return domain.ProcessInfo{}, fmt.Errorf("creating working directory: %w", err)
		}
	}

	proc, err := m.runner.Start(ctx, spec)
	if err != nil {
		m.untrack(spec.InstanceID)
		return domain.ProcessInfo{}, fmt.Errorf("spawning %s: %w", spec.InstanceID, err)
	}

	// Monitoring lifetime is detached from the caller's request context;
	// it ends on cleanup or shutdown.
	monCtx, cancel := context.WithCancel(context.Background())

	tp.mu.Lock()
	tp.proc = proc
	tp.cancel = cancel
	tp.info.PID = proc.PID()
	tp.info.StartedAt = time.Now()
	tp.mu.Unlock()

	go func() {
		tp.waitErr = proc.Wait()
		close(tp.exited)
	}()
	go m.monitor(monCtx, tp)

	m.logger.Info("spawned worker process",
		"instance_id", spec.InstanceID,
		"pid", proc.PID(),
		"command", spec.Command)

	return tp.snapshot(), nil
}

// Terminate stops an instance's process: graceful stop, bounded wait,
// forced kill on timeout. Unknown instances return false with a warning;
// already-exited processes are cleaned up and return true without any
// signal being sent.
func (m *Manager) Terminate(ctx context.Context, instanceID string, timeout time.Duration, force bool) bool {
	m.mu.RLock()
	tp, ok := m.procs[instanceID]
	m.mu.RUnlock()
	if !ok {
		m.logger.Warn("terminate: unknown instance", "instance_id", instanceID)
		return false
	}
	if timeout <= 0 {
		timeout = m.cfg.TerminateTimeout
	}

	if tp.hasExited() {
		m.Cleanup(instanceID)
		return true
	}

	tp.mu.Lock()
	proc := tp.proc
	if proc == nil {
		tp.mu.Unlock()
		m.Cleanup(instanceID)
		return true
	}
	m.transition(tp, domain.ProcessStatusStopping)
	tp.mu.Unlock()

	sig := sigterm
	if force {
		sig = sigkill
	}
	if err := proc.Signal(sig); err != nil {
		m.logger.Warn("terminate: signal failed",
			"instance_id", instanceID, "signal", sig, "error", err)
		m.Cleanup(instanceID)
		return false
	}

	select {
	case <-tp.exited:
	case <-ctx.Done():
		m.Cleanup(instanceID)
		return false
	case <-time.After(timeout):
		m.logger.Warn("graceful stop timed out, sending SIGKILL", "instance_id", instanceID)
		if err := proc.Signal(sigkill); err != nil {
			m.logger.Warn("terminate: SIGKILL failed", "instance_id", instanceID, "error", err)
			m.Cleanup(instanceID)
			return false
		}
		select {
		case <-tp.exited:
		case <-time.After(time.Second):
		case <-ctx.Done():
		}
	}

	m.Cleanup(instanceID)
	return true
}

// Cleanup cancels the instance's monitoring goroutine, drops the
// subprocess handle, and removes the instance from the registry. A
// terminal status is preserved; anything else becomes stopped.
func (m *Manager) Cleanup(instanceID string) {
	m.mu.Lock()
	tp, ok := m.procs[instanceID]
	if ok {
		delete(m.procs, instanceID)
	}
	tracked := len(m.procs)
	m.mu.Unlock()
	if !ok {
		return
	}

	tp.mu.Lock()
	if tp.cancel != nil {
		tp.cancel()
	}
	if !tp.info.Status.IsTerminal() {
		m.transition(tp, domain.ProcessStatusStopped)
	}
	tp.proc = nil
	tp.mu.Unlock()

	m.metrics.ProcessesTracked(tracked)
	m.logger.Info("cleaned up instance", "instance_id", instanceID)
}

// CleanupAll triggers the shared shutdown flag, terminates every tracked
// process with a bounded timeout, and clears all tracking structures.
func (m *Manager) CleanupAll(ctx context.Context) {
	m.shutdown.Trigger()

	m.mu.RLock()
	ids := make([]string, 0, len(m.procs))
	for id := range m.procs {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.Terminate(ctx, id, m.cfg.ShutdownTimeout, false)
		}(id)
	}
	wg.Wait()

	m.mu.Lock()
	m.procs = make(map[string]*trackedProcess)
	m.mu.Unlock()
	m.metrics.ProcessesTracked(0)
}

// Restart terminates an instance's process and respawns it from the
// recorded spawn spec
func (m *Manager) Restart(ctx context.Context, instanceID string) (domain.ProcessInfo, error) {
	m.mu.RLock()
	tp, ok := m.procs[instanceID]
	m.mu.RUnlock()
	if !ok {
		return domain.ProcessInfo{}, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, instanceID)
	}
	spec := tp.spec

	m.Terminate(ctx, instanceID, m.cfg.TerminateTimeout, false)
	return m.Spawn(ctx, spec)
}

// GetProcessInfo returns a copy of the tracked state for an instance
func (m *Manager) GetProcessInfo(instanceID string) (domain.ProcessInfo, error) {
	m.mu.RLock()
	tp, ok := m.procs[instanceID]
	m.mu.RUnlock()
	if !ok {
		return domain.ProcessInfo{}, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, instanceID)
	}
	return tp.snapshot(), nil
}

// ListProcesses returns defensive copies of all tracked state, sorted by
// instance id
func (m *Manager) ListProcesses() []domain.ProcessInfo {
	m.mu.RLock()
	out := make([]domain.ProcessInfo, 0, len(m.procs))
	for _, tp := range m.procs {
		out = append(out, tp.snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].InstanceID < out[j].InstanceID
	})
	return out
}

// IsProcessRunning reports whether the instance's OS process is currently
// alive
func (m *Manager) IsProcessRunning(instanceID string) bool {
	m.mu.RLock()
	tp, ok := m.procs[instanceID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return !tp.hasExited()
}

// untrack removes a registry entry that never got a running process
func (m *Manager) untrack(instanceID string) {
	m.mu.Lock()
	delete(m.procs, instanceID)
	tracked := len(m.procs)
	m.mu.Unlock()
	m.metrics.ProcessesTracked(tracked)
}

// transition changes the instance status. Caller holds tp.mu. Terminal
// statuses never revert without a new spawn.
func (m *Manager) transition(tp *trackedProcess, to domain.ProcessStatus) {
	from := tp.info.Status
	if from == to || from.IsTerminal() {
		return
	}
	tp.info.Status = to
	m.metrics.StateTransition(tp.info.InstanceID, from, to)
}
