package domain

import "time"

// HealthLevel classifies the overall health of an instance
type HealthLevel string

const (
	HealthHealthy   HealthLevel = "healthy"
	HealthDegraded  HealthLevel = "degraded"
	HealthUnhealthy HealthLevel = "unhealthy"
	HealthUnknown   HealthLevel = "unknown"
)

// String returns the string representation of HealthLevel
func (l HealthLevel) String() string {
	return string(l)
}

// severity orders levels from best to worst for composite classification
func (l HealthLevel) severity() int {
	switch l {
	case HealthHealthy:
		return 0
	case HealthUnknown:
		return 1
	case HealthDegraded:
		return 2
	case HealthUnhealthy:
		return 3
	default:
		return 1
	}
}

// Worse returns the worse of two levels
func (l HealthLevel) Worse(other HealthLevel) HealthLevel {
	if other.severity() > l.severity() {
		return other
	}
	return l
}

// CheckType identifies one liveness aspect probed by the health monitor
type CheckType string

const (
	CheckProcess        CheckType = "process"
	CheckSession        CheckType = "session"
	CheckWorkspace      CheckType = "workspace"
	CheckResponsiveness CheckType = "responsiveness"
)

// CheckResult is the outcome of a single health check
type CheckResult struct {
	Type    CheckType   `json:"type"`
	Level   HealthLevel `json:"level"`
	Message string      `json:"message,omitempty"`
}

// HealthReport is the composite outcome of one check cycle for an instance.
// Overall is the worst individual check result.
type HealthReport struct {
	InstanceID string        `json:"instance_id"`
	Overall    HealthLevel   `json:"overall"`
	Checks     []CheckResult `json:"checks"`
	CheckedAt  time.Time     `json:"checked_at"`
}
