package domain

import "time"

// ProcessStatus represents the current lifecycle state of a managed worker
// process. A process moves starting -> running -> {stopping -> stopped} or
// crashed; stopped and crashed are terminal until a new spawn.
type ProcessStatus string

const (
	// ProcessStatusStarting indicates the process was spawned but has not
	// yet been observed alive by its monitoring loop
	ProcessStatusStarting ProcessStatus = "starting"
	// ProcessStatusRunning indicates the process is actively running
	ProcessStatusRunning ProcessStatus = "running"
	// ProcessStatusStopping indicates a graceful stop is in progress
	ProcessStatusStopping ProcessStatus = "stopping"
	// ProcessStatusStopped indicates the process exited cleanly (rc=0) or
	// was stopped on request
	ProcessStatusStopped ProcessStatus = "stopped"
	// ProcessStatusCrashed indicates the process exited with a nonzero code
	ProcessStatusCrashed ProcessStatus = "crashed"
	// ProcessStatusError indicates the process could not be started
	ProcessStatusError ProcessStatus = "error"
)

// String returns the string representation of ProcessStatus
func (s ProcessStatus) String() string {
	return string(s)
}

// IsRunning returns true if the process is in a running state
func (s ProcessStatus) IsRunning() bool {
	return s == ProcessStatusRunning
}

// IsTerminal returns true if the status never changes without a new spawn
func (s ProcessStatus) IsTerminal() bool {
	return s == ProcessStatusStopped || s == ProcessStatusCrashed
}

// SpawnSpec describes how to start a worker process for an instance
type SpawnSpec struct {
	InstanceID string
	Command    string
	WorkingDir string
	Env        map[string]string
}

// ProcessInfo is the runtime state of one managed worker process, keyed by
// instance id. At most one live ProcessInfo exists per instance; it is
// mutated only by the owning monitoring goroutine.
type ProcessInfo struct {
	InstanceID   string            `json:"instance_id"`
	PID          int               `json:"pid"`
	Status       ProcessStatus     `json:"status"`
	Command      string            `json:"command"`
	WorkingDir   string            `json:"working_directory"`
	Env          map[string]string `json:"environment,omitempty"`
	StartedAt    time.Time         `json:"started_at,omitempty"`
	CPUPercent   float64           `json:"cpu_percent"`
	MemoryMB     float64           `json:"memory_mb"`
	ReturnCode   *int              `json:"return_code,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

// UptimeSeconds returns the number of seconds the process has been running
func (p ProcessInfo) UptimeSeconds() int64 {
	if p.StartedAt.IsZero() {
		return 0
	}
	return int64(time.Since(p.StartedAt).Seconds())
}

// Clone returns a deep copy so callers can never mutate tracked state
func (p ProcessInfo) Clone() ProcessInfo {
	out := p
	if p.Env != nil {
		out.Env = make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			out.Env[k] = v
		}
	}
	if p.ReturnCode != nil {
		rc := *p.ReturnCode
		out.ReturnCode = &rc
	}
	return out
}
