// Package metrics defines the observability counters recorded by the
// supervision core. A Collector implementation is passed into each
// component at construction; the no-op collector keeps tests quiet.
package metrics

import (
	"time"

	"github.com/warden-sh/warden/internal/domain"
)

// Collector receives observability events from the core components
type Collector interface {
	// StateTransition records a process status change for an instance
	StateTransition(instanceID string, from, to domain.ProcessStatus)

	// ProcessesTracked records the current number of tracked instances
	ProcessesTracked(n int)

	// CheckPerformed records one completed health check cycle
	CheckPerformed(instanceID string, overall domain.HealthLevel)

	// RecoveryAttempt records a committed recovery attempt
	RecoveryAttempt(instanceID string)

	// RecoveryExhausted records a refusal due to an exhausted budget
	RecoveryExhausted(instanceID string)

	// RecoveryBackoff records the backoff delay before an attempt
	RecoveryBackoff(instanceID string, delay time.Duration)

	// AlertDelivered records one handler delivery outcome
	AlertDelivered(handler string, ok bool)
}

// noopCollector is a no-op implementation of Collector
type noopCollector struct{}

func (noopCollector) StateTransition(instanceID string, from, to domain.ProcessStatus) {}
func (noopCollector) ProcessesTracked(n int)                                           {}
func (noopCollector) CheckPerformed(instanceID string, overall domain.HealthLevel)     {}
func (noopCollector) RecoveryAttempt(instanceID string)                                {}
func (noopCollector) RecoveryExhausted(instanceID string)                              {}
func (noopCollector) RecoveryBackoff(instanceID string, delay time.Duration)           {}
func (noopCollector) AlertDelivered(handler string, ok bool)                           {}

// NewNoopCollector creates a no-op metrics collector
func NewNoopCollector() Collector {
	return noopCollector{}
}
