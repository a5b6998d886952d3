package health

import (
	"context"
	"fmt"
	"os"

	"github.com/warden-sh/warden/internal/domain"
)

// ProcessInspector is the view of the process manager the monitor needs
type ProcessInspector interface {
	GetProcessInfo(instanceID string) (domain.ProcessInfo, error)
}

// SessionProber reports whether a named multiplexer session exists.
// Implementations live outside this package.
type SessionProber interface {
	HasSession(ctx context.Context, sessionID string) (bool, error)
}

// Responder answers a liveness ping for a worker. Implementations live
// outside this package.
type Responder interface {
	Ping(ctx context.Context, instanceID string) error
}

func (m *Monitor) checkProcess(ctx context.Context, inst domain.Instance) domain.CheckResult {
	res := domain.CheckResult{Type: domain.CheckProcess}

	info, err := m.processes.GetProcessInfo(inst.ID)
	if err != nil {
		res.Level = domain.HealthUnhealthy
		res.Message = "no tracked process"
		return res
	}

	switch info.Status {
	case domain.ProcessStatusRunning:
		res.Level = domain.HealthHealthy
	case domain.ProcessStatusStarting, domain.ProcessStatusStopping:
		res.Level = domain.HealthDegraded
		res.Message = fmt.Sprintf("process is %s", info.Status)
	default:
		res.Level = domain.HealthUnhealthy
		res.Message = fmt.Sprintf("process is %s", info.Status)
		if info.ErrorMessage != "" {
			res.Message = info.ErrorMessage
		}
	}
	return res
}

func (m *Monitor) checkSession(ctx context.Context, inst domain.Instance) domain.CheckResult {
	res := domain.CheckResult{Type: domain.CheckSession}

	if m.sessions == nil || inst.SessionID == "" {
		res.Level = domain.HealthUnknown
		res.Message = "no session to probe"
		return res
	}

	alive, err := m.sessions.HasSession(ctx, inst.SessionID)
	if err != nil {
		res.Level = domain.HealthDegraded
		res.Message = fmt.Sprintf("session probe failed: %v", err)
		return res
	}
	if !alive {
		res.Level = domain.HealthUnhealthy
		res.Message = fmt.Sprintf("session %s not found", inst.SessionID)
		return res
	}

	res.Level = domain.HealthHealthy
	return res
}

func (m *Monitor) checkWorkspace(ctx context.Context, inst domain.Instance) domain.CheckResult {
	res := domain.CheckResult{Type: domain.CheckWorkspace}

	if inst.WorkspacePath == "" {
		res.Level = domain.HealthUnknown
		res.Message = "no workspace path configured"
		return res
	}

	st, err := os.Stat(inst.WorkspacePath)
	if err != nil {
		res.Level = domain.HealthUnhealthy
		res.Message = fmt.Sprintf("workspace missing: %v", err)
		return res
	}
	if !st.IsDir() {
		res.Level = domain.HealthUnhealthy
		res.Message = "workspace path is not a directory"
		return res
	}

	res.Level = domain.HealthHealthy
	return res
}

func (m *Monitor) checkResponsiveness(ctx context.Context, inst domain.Instance) domain.CheckResult {
	res := domain.CheckResult{Type: domain.CheckResponsiveness}

	if m.responder == nil {
		res.Level = domain.HealthUnknown
		res.Message = "no responsiveness probe configured"
		return res
	}

	if err := m.responder.Ping(ctx, inst.ID); err != nil {
		res.Level = domain.HealthUnhealthy
		res.Message = fmt.Sprintf("ping failed: %v", err)
		return res
	}

	res.Level = domain.HealthHealthy
	return res
}
