package procmanager

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/warden-sh/warden/internal/domain"
)

// exitCoder matches *exec.ExitError and test doubles that report an exit
// code
type exitCoder interface {
	ExitCode() int
}

// monitor is the per-instance monitoring loop. It repeats until the
// process exits, the instance is cleaned up, or shutdown is signalled.
// Failures inside the loop end this goroutine only; they never propagate
// to sibling monitors.
func (m *Manager) monitor(ctx context.Context, tp *trackedProcess) {
	defer close(tp.done)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("monitoring loop panicked",
				"instance_id", tp.info.InstanceID, "panic", r)
		}
	}()

	poll := time.NewTicker(m.cfg.PollInterval)
	defer poll.Stop()

	var lastSample time.Time

	for {
		select {
		case <-tp.exited:
			m.finalize(tp)
			return
		case <-ctx.Done():
			return
		case <-m.shutdown.Done():
			return
		case <-poll.C:
			if m.shutdown.Triggered() {
				return
			}

			// First live poll flips starting -> running
			tp.mu.Lock()
			if tp.info.Status == domain.ProcessStatusStarting {
				m.transition(tp, domain.ProcessStatusRunning)
			}
			pid := tp.info.PID
			tp.mu.Unlock()

			if time.Since(lastSample) >= m.cfg.SampleInterval {
				lastSample = time.Now()
				m.sampleResources(tp, pid)
			}
		}
	}
}

// sampleResources refreshes cpu/memory usage. Sampling errors (permission
// denied, process already gone) are swallowed; the previous sample stands.
func (m *Manager) sampleResources(tp *trackedProcess, pid int) {
	usage, err := m.sampler.Sample(pid)
	if err != nil {
		m.logger.Debug("resource sample failed",
			"instance_id", tp.info.InstanceID, "pid", pid, "error", err)
		return
	}

	tp.mu.Lock()
	tp.info.CPUPercent = usage.CPUPercent
	tp.info.MemoryMB = usage.MemoryMB
	tp.mu.Unlock()
}

// finalize records the exit outcome: rc 0 means stopped, nonzero means
// crashed unless a graceful stop was in progress. A wait failure that
// carries no exit code becomes the error status.
func (m *Manager) finalize(tp *trackedProcess) {
	waitErr := tp.waitErr

	tp.mu.Lock()
	defer tp.mu.Unlock()

	stopping := tp.info.Status == domain.ProcessStatusStopping

	switch {
	case waitErr == nil:
		rc := 0
		tp.info.ReturnCode = &rc
		m.transition(tp, domain.ProcessStatusStopped)
		m.logger.Info("worker exited", "instance_id", tp.info.InstanceID, "return_code", 0)

	default:
		ec, ok := waitErr.(exitCoder)
		if !ok {
			tp.info.ErrorMessage = waitErr.Error()
			m.transition(tp, domain.ProcessStatusError)
			m.logger.Error("wait failed", "instance_id", tp.info.InstanceID, "error", waitErr)
			return
		}

		rc := ec.ExitCode()
		// Signal termination reports as negative signal number
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				rc = -int(status.Signal())
			}
		}
		tp.info.ReturnCode = &rc

		if stopping || rc == 0 {
			m.transition(tp, domain.ProcessStatusStopped)
			m.logger.Info("worker stopped", "instance_id", tp.info.InstanceID, "return_code", rc)
			return
		}

		tp.info.ErrorMessage = fmt.Sprintf("exited unexpectedly with code %d", rc)
		m.transition(tp, domain.ProcessStatusCrashed)
		m.logger.Warn("worker crashed",
			"instance_id", tp.info.InstanceID, "return_code", rc)
	}
}
