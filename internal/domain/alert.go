package domain

import (
	"fmt"
	"time"
)

// AlertLevel represents the severity of an alert
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertError    AlertLevel = "error"
	AlertCritical AlertLevel = "critical"
)

// String returns the string representation of AlertLevel
func (l AlertLevel) String() string {
	return string(l)
}

// Alert is a structured notification of a noteworthy event. Alerts are
// immutable once created.
type Alert struct {
	ID         string         `json:"alert_id"`
	InstanceID string         `json:"instance_id"`
	Level      AlertLevel     `json:"level"`
	Message    string         `json:"message"`
	Timestamp  time.Time      `json:"timestamp"`
	Details    map[string]any `json:"details,omitempty"`
}

// NewAlert builds an alert with the deterministic default id
// (instance-level-epochseconds) when none is supplied.
func NewAlert(instanceID string, level AlertLevel, message string, details map[string]any) Alert {
	now := time.Now()
	return Alert{
		ID:         fmt.Sprintf("%s-%s-%d", instanceID, level, now.Unix()),
		InstanceID: instanceID,
		Level:      level,
		Message:    message,
		Timestamp:  now,
		Details:    details,
	}
}
