package config

import (
	"sync"
	"time"
)

// CheckOverride carries optional per-instance values for one sub-check.
// Nil fields mean "inherit the global value".
type CheckOverride struct {
	Enabled *bool
	Timeout *time.Duration
}

// InstanceOverrides carries optional per-instance monitoring values layered
// over the global settings, field by field
type InstanceOverrides struct {
	Enabled        *bool
	CheckInterval  *time.Duration
	Process        *CheckOverride
	Session        *CheckOverride
	Workspace      *CheckOverride
	Responsiveness *CheckOverride
}

// Resolve layers instance overrides over global settings and returns the
// effective settings. The global settings are never mutated.
func Resolve(global MonitoringSettings, ov InstanceOverrides) MonitoringSettings {
	out := global

	if ov.Enabled != nil {
		out.Enabled = *ov.Enabled
	}
	if ov.CheckInterval != nil {
		out.CheckInterval = *ov.CheckInterval
	}
	out.Process = resolveCheck(global.Process, ov.Process)
	out.Session = resolveCheck(global.Session, ov.Session)
	out.Workspace = resolveCheck(global.Workspace, ov.Workspace)
	out.Responsiveness = resolveCheck(global.Responsiveness, ov.Responsiveness)

	return out
}

func resolveCheck(global CheckSettings, ov *CheckOverride) CheckSettings {
	if ov == nil {
		return global
	}
	out := global
	if ov.Enabled != nil {
		out.Enabled = *ov.Enabled
	}
	if ov.Timeout != nil {
		out.Timeout = *ov.Timeout
	}
	return out
}

// OverrideStore is the mutable side-map of per-instance monitoring
// overrides. It is safe for concurrent use.
type OverrideStore struct {
	mu         sync.RWMutex
	byInstance map[string]InstanceOverrides
}

// NewOverrideStore creates an empty override store
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{byInstance: make(map[string]InstanceOverrides)}
}

// Set replaces the overrides for an instance
func (s *OverrideStore) Set(instanceID string, ov InstanceOverrides) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byInstance[instanceID] = ov
}

// Get returns the overrides for an instance, if any
func (s *OverrideStore) Get(instanceID string) (InstanceOverrides, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ov, ok := s.byInstance[instanceID]
	return ov, ok
}

// Delete removes the overrides for an instance
func (s *OverrideStore) Delete(instanceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byInstance, instanceID)
}

// Resolve returns the effective settings for an instance
func (s *OverrideStore) Resolve(global MonitoringSettings, instanceID string) MonitoringSettings {
	ov, ok := s.Get(instanceID)
	if !ok {
		return global
	}
	return Resolve(global, ov)
}
