package procmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warden-sh/warden/internal/domain"
)

// fakeExitError reports an exit code the way *exec.ExitError does
type fakeExitError struct{ code int }

func (e fakeExitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e fakeExitError) ExitCode() int { return e.code }

// fakeProcess is a controllable Process for tests
type fakeProcess struct {
	pid int

	mu      sync.Mutex
	signals []os.Signal

	waitCh   chan error
	exitOnce sync.Once

	exitOnTerm bool
	exitOnKill bool
	signalErr  error
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, waitCh: make(chan error, 1)}
}

func (p *fakeProcess) PID() int    { return p.pid }
func (p *fakeProcess) Wait() error { return <-p.waitCh }

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()

	if p.signalErr != nil {
		return p.signalErr
	}
	if sig == sigterm && p.exitOnTerm {
		p.exit(fakeExitError{code: 143})
	}
	if sig == sigkill && p.exitOnKill {
		p.exit(fakeExitError{code: 137})
	}
	return nil
}

func (p *fakeProcess) exit(err error) {
	p.exitOnce.Do(func() { p.waitCh <- err })
}

func (p *fakeProcess) sentSignals() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}

// fakeRunner hands out fakeProcesses keyed by instance id
type fakeRunner struct {
	mu       sync.Mutex
	procs    map[string]*fakeProcess
	nextPID  int
	startErr error
	setup    func(*fakeProcess)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{procs: make(map[string]*fakeProcess), nextPID: 1000}
}

func (r *fakeRunner) Start(ctx context.Context, spec domain.SpawnSpec) (Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.startErr != nil {
		return nil, r.startErr
	}

	r.nextPID++
	p := newFakeProcess(r.nextPID)
	if r.setup != nil {
		r.setup(p)
	}
	r.procs[spec.InstanceID] = p
	return p, nil
}

func (r *fakeRunner) proc(instanceID string) *fakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.procs[instanceID]
}

// fakeSampler returns fixed usage values
type fakeSampler struct {
	usage ResourceUsage
	err   error
}

func (s fakeSampler) Sample(pid int) (ResourceUsage, error) {
	return s.usage, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestManager(runner ProcessRunner, sampler ResourceSampler) *Manager {
	if sampler == nil {
		sampler = fakeSampler{usage: ResourceUsage{CPUPercent: 1.5, MemoryMB: 64}}
	}
	return New(runner, sampler, testLogger(), nil, Config{
		PollInterval:     10 * time.Millisecond,
		SampleInterval:   20 * time.Millisecond,
		TerminateTimeout: 200 * time.Millisecond,
		ShutdownTimeout:  200 * time.Millisecond,
	})
}

func spawn(t *testing.T, m *Manager, id string) domain.ProcessInfo {
	t.Helper()
	info, err := m.Spawn(context.Background(), domain.SpawnSpec{
		InstanceID: id,
		Command:    "agent --work",
	})
	require.NoError(t, err)
	return info
}

func waitForStatus(t *testing.T, m *Manager, id string, want domain.ProcessStatus) domain.ProcessInfo {
	t.Helper()
	var info domain.ProcessInfo
	require.Eventually(t, func() bool {
		var err error
		info, err = m.GetProcessInfo(id)
		return err == nil && info.Status == want
	}, 2*time.Second, 5*time.Millisecond, "instance %s never reached %s", id, want)
	return info
}

func TestSpawn_DuplicateInstanceFails(t *testing.T) {
	runner := newFakeRunner()
	m := newTestManager(runner, nil)
	defer m.CleanupAll(context.Background())

	spawn(t, m, "i1")

	_, err := m.Spawn(context.Background(), domain.SpawnSpec{InstanceID: "i1", Command: "agent"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInstanceExists)
}

func TestSpawn_StartFailureLeavesNothingTracked(t *testing.T) {
	runner := newFakeRunner()
	runner.startErr = errors.New("no such file")
	m := newTestManager(runner, nil)

	_, err := m.Spawn(context.Background(), domain.SpawnSpec{InstanceID: "i1", Command: "missing"})
	require.Error(t, err)

	_, err = m.GetProcessInfo("i1")
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
	assert.Empty(t, m.ListProcesses())
}

func TestSpawn_CreatesWorkingDirectory(t *testing.T) {
	runner := newFakeRunner()
	m := newTestManager(runner, nil)
	defer m.CleanupAll(context.Background())

	workdir := t.TempDir() + "/nested/ws"
	_, err := m.Spawn(context.Background(), domain.SpawnSpec{
		InstanceID: "i1",
		Command:    "agent",
		WorkingDir: workdir,
	})
	require.NoError(t, err)

	st, err := os.Stat(workdir)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestMonitor_Lifecycle(t *testing.T) {
	runner := newFakeRunner()
	m := newTestManager(runner, nil)
	defer m.CleanupAll(context.Background())

	info := spawn(t, m, "i1")
	assert.Equal(t, domain.ProcessStatusStarting, info.Status)
	assert.Greater(t, info.PID, 0)

	// One live poll flips starting -> running
	waitForStatus(t, m, "i1", domain.ProcessStatusRunning)

	// Clean exit becomes stopped with return code 0
	runner.proc("i1").exit(nil)
	info = waitForStatus(t, m, "i1", domain.ProcessStatusStopped)
	require.NotNil(t, info.ReturnCode)
	assert.Equal(t, 0, *info.ReturnCode)

	// Still tracked: a second spawn without cleanup fails
	_, err := m.Spawn(context.Background(), domain.SpawnSpec{InstanceID: "i1", Command: "agent"})
	assert.ErrorIs(t, err, domain.ErrInstanceExists)

	// After cleanup the id is free again
	m.Cleanup("i1")
	spawn(t, m, "i1")
}

func TestMonitor_CrashRecordsCodeAndMessage(t *testing.T) {
	runner := newFakeRunner()
	m := newTestManager(runner, nil)
	defer m.CleanupAll(context.Background())

	spawn(t, m, "i1")
	waitForStatus(t, m, "i1", domain.ProcessStatusRunning)

	runner.proc("i1").exit(fakeExitError{code: 2})

	info := waitForStatus(t, m, "i1", domain.ProcessStatusCrashed)
	require.NotNil(t, info.ReturnCode)
	assert.Equal(t, 2, *info.ReturnCode)
	assert.Contains(t, info.ErrorMessage, "code 2")
}

func TestMonitor_TerminalStatusNeverReverts(t *testing.T) {
	runner := newFakeRunner()
	m := newTestManager(runner, nil)
	defer m.CleanupAll(context.Background())

	spawn(t, m, "i1")
	runner.proc("i1").exit(fakeExitError{code: 1})
	waitForStatus(t, m, "i1", domain.ProcessStatusCrashed)

	// Give the poll loop time to run again; crashed must stick
	time.Sleep(50 * time.Millisecond)
	info, err := m.GetProcessInfo("i1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessStatusCrashed, info.Status)
}

func TestMonitor_SamplesResources(t *testing.T) {
	runner := newFakeRunner()
	m := newTestManager(runner, fakeSampler{usage: ResourceUsage{CPUPercent: 12.5, MemoryMB: 256}})
	defer m.CleanupAll(context.Background())

	spawn(t, m, "i1")

	require.Eventually(t, func() bool {
		info, err := m.GetProcessInfo("i1")
		return err == nil && info.CPUPercent == 12.5 && info.MemoryMB == 256
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMonitor_SamplerErrorsDoNotStopLoop(t *testing.T) {
	runner := newFakeRunner()
	m := newTestManager(runner, fakeSampler{err: errors.New("permission denied")})
	defer m.CleanupAll(context.Background())

	spawn(t, m, "i1")

	// The loop keeps polling despite sampler failures
	waitForStatus(t, m, "i1", domain.ProcessStatusRunning)
	runner.proc("i1").exit(nil)
	waitForStatus(t, m, "i1", domain.ProcessStatusStopped)
}

func TestTerminate_UnknownInstance(t *testing.T) {
	m := newTestManager(newFakeRunner(), nil)

	assert.False(t, m.Terminate(context.Background(), "ghost", time.Second, false))
}

func TestTerminate_AlreadyExitedSendsNoSignal(t *testing.T) {
	runner := newFakeRunner()
	m := newTestManager(runner, nil)

	spawn(t, m, "i1")
	proc := runner.proc("i1")
	proc.exit(nil)
	waitForStatus(t, m, "i1", domain.ProcessStatusStopped)

	ok := m.Terminate(context.Background(), "i1", time.Second, false)
	assert.True(t, ok)
	assert.Empty(t, proc.sentSignals())

	// Cleanup ran: the instance is no longer tracked
	_, err := m.GetProcessInfo("i1")
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
}

func TestTerminate_Graceful(t *testing.T) {
	runner := newFakeRunner()
	runner.setup = func(p *fakeProcess) { p.exitOnTerm = true }
	m := newTestManager(runner, nil)

	spawn(t, m, "i1")
	proc := runner.proc("i1")

	ok := m.Terminate(context.Background(), "i1", time.Second, false)
	assert.True(t, ok)

	sigs := proc.sentSignals()
	require.Len(t, sigs, 1)
	assert.Equal(t, sigterm, sigs[0])
}

func TestTerminate_ForceKillAfterTimeout(t *testing.T) {
	runner := newFakeRunner()
	runner.setup = func(p *fakeProcess) { p.exitOnKill = true }
	m := newTestManager(runner, nil)

	spawn(t, m, "i1")
	proc := runner.proc("i1")

	// The process ignores SIGTERM; a forced kill follows the timeout
	ok := m.Terminate(context.Background(), "i1", 30*time.Millisecond, false)
	assert.True(t, ok)

	sigs := proc.sentSignals()
	require.Len(t, sigs, 2)
	assert.Equal(t, sigterm, sigs[0])
	assert.Equal(t, sigkill, sigs[1])
}

func TestTerminate_ForceSendsKillImmediately(t *testing.T) {
	runner := newFakeRunner()
	runner.setup = func(p *fakeProcess) { p.exitOnKill = true }
	m := newTestManager(runner, nil)

	spawn(t, m, "i1")

	ok := m.Terminate(context.Background(), "i1", time.Second, true)
	assert.True(t, ok)

	sigs := runner.proc("i1").sentSignals()
	require.Len(t, sigs, 1)
	assert.Equal(t, sigkill, sigs[0])
}

func TestTerminate_SignalFailureStillCleansUp(t *testing.T) {
	runner := newFakeRunner()
	runner.setup = func(p *fakeProcess) { p.signalErr = errors.New("operation not permitted") }
	m := newTestManager(runner, nil)

	spawn(t, m, "i1")

	ok := m.Terminate(context.Background(), "i1", time.Second, false)
	assert.False(t, ok)

	_, err := m.GetProcessInfo("i1")
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
}

func TestCleanupAll(t *testing.T) {
	runner := newFakeRunner()
	runner.setup = func(p *fakeProcess) { p.exitOnTerm = true }
	m := newTestManager(runner, nil)

	spawn(t, m, "i1")
	spawn(t, m, "i2")

	m.CleanupAll(context.Background())

	assert.Empty(t, m.ListProcesses())

	// Shutdown flag blocks new spawns
	_, err := m.Spawn(context.Background(), domain.SpawnSpec{InstanceID: "i3", Command: "agent"})
	assert.ErrorIs(t, err, domain.ErrShutdown)
}

func TestRestart(t *testing.T) {
	runner := newFakeRunner()
	runner.setup = func(p *fakeProcess) { p.exitOnTerm = true }
	m := newTestManager(runner, nil)
	defer m.CleanupAll(context.Background())

	info1 := spawn(t, m, "i1")

	info2, err := m.Restart(context.Background(), "i1")
	require.NoError(t, err)
	assert.NotEqual(t, info1.PID, info2.PID)
	assert.Equal(t, "i1", info2.InstanceID)
	assert.Equal(t, domain.ProcessStatusStarting, info2.Status)
}

func TestRestart_UnknownInstance(t *testing.T) {
	m := newTestManager(newFakeRunner(), nil)

	_, err := m.Restart(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
}

func TestListProcesses_ReturnsDefensiveCopies(t *testing.T) {
	runner := newFakeRunner()
	m := newTestManager(runner, nil)
	defer m.CleanupAll(context.Background())

	_, err := m.Spawn(context.Background(), domain.SpawnSpec{
		InstanceID: "i1",
		Command:    "agent",
		Env:        map[string]string{"KEY": "original"},
	})
	require.NoError(t, err)

	list := m.ListProcesses()
	require.Len(t, list, 1)
	list[0].Env["KEY"] = "mutated"

	info, err := m.GetProcessInfo("i1")
	require.NoError(t, err)
	assert.Equal(t, "original", info.Env["KEY"])
}

func TestListProcesses_SortedByInstanceID(t *testing.T) {
	runner := newFakeRunner()
	m := newTestManager(runner, nil)
	defer m.CleanupAll(context.Background())

	spawn(t, m, "zeta")
	spawn(t, m, "alpha")
	spawn(t, m, "mid")

	list := m.ListProcesses()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].InstanceID)
	assert.Equal(t, "mid", list[1].InstanceID)
	assert.Equal(t, "zeta", list[2].InstanceID)
}

func TestManager_RealProcessLifecycle(t *testing.T) {
	m := newTestManager(NewExecRunner(), NewResourceSampler())

	info, err := m.Spawn(context.Background(), domain.SpawnSpec{
		InstanceID: "real",
		Command:    "sleep 30",
	})
	require.NoError(t, err)
	assert.Greater(t, info.PID, 0)

	waitForStatus(t, m, "real", domain.ProcessStatusRunning)
	assert.True(t, m.IsProcessRunning("real"))

	m.CleanupAll(context.Background())
	assert.Empty(t, m.ListProcesses())
}

func TestIsProcessRunning(t *testing.T) {
	runner := newFakeRunner()
	m := newTestManager(runner, nil)
	defer m.CleanupAll(context.Background())

	assert.False(t, m.IsProcessRunning("i1"))

	spawn(t, m, "i1")
	assert.True(t, m.IsProcessRunning("i1"))

	runner.proc("i1").exit(nil)
	require.Eventually(t, func() bool {
		return !m.IsProcessRunning("i1")
	}, 2*time.Second, 5*time.Millisecond)
}
