// Package procmanager spawns, monitors, and terminates the OS-level worker
// processes backing orchestrated instances.
//
// # Security Model
//
// Commands are executed via "sh -c" to support shell features like pipes,
// redirects, and variable expansion. Worker definitions therefore have the
// same trust level as Makefiles or Procfiles - they can execute arbitrary
// code. Only accept worker commands from trusted sources.
package procmanager

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/warden-sh/warden/internal/domain"
)

// ProcessRunner creates and starts worker processes
type ProcessRunner interface {
	Start(ctx context.Context, spec domain.SpawnSpec) (Process, error)
}

// Process represents a started worker process
type Process interface {
	PID() int
	Wait() error
	Signal(sig os.Signal) error
}

// ExecRunner implements ProcessRunner using os/exec
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Start starts a new worker process. The caller's env is merged over the
// inherited environment.
func (r *ExecRunner) Start(ctx context.Context, spec domain.SpawnSpec) (Process, error) {
	cmd := exec.Command("sh", "-c", spec.Command)
	cmd.Dir = spec.WorkingDir

	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	// Set process group so termination reaches all children
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting process: %w", err)
	}

	return &execProcess{cmd: cmd}, nil
}

// execProcess wraps exec.Cmd to implement Process
type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}

	// Kill entire process group
	pgid, err := syscall.Getpgid(p.cmd.Process.Pid)
	if err != nil {
		// Fall back to signaling just the process
		return p.cmd.Process.Signal(sig)
	}

	return syscall.Kill(-pgid, sig.(syscall.Signal))
}
