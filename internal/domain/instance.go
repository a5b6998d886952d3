package domain

// Instance is the orchestration entity tracked by the supervision core.
// Its status, health and counters are updated in memory here; durable
// persistence belongs to the orchestration layer.
type Instance struct {
	ID            string      `json:"id"`
	IssueID       string      `json:"issue_id,omitempty"`
	WorkspacePath string      `json:"workspace_path,omitempty"`
	Branch        string      `json:"branch,omitempty"`
	SessionID     string      `json:"session_id,omitempty"`
	Status        string      `json:"status,omitempty"`
	HealthStatus  HealthLevel `json:"health_status,omitempty"`
	RecoveryCount int         `json:"recovery_count"`
}
