package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/warden-sh/warden/internal/domain"
)

// Validate checks the configuration for errors, including cross-field
// invariants between handler toggles and their required settings
func Validate(cfg *Config) error {
	var errs []string

	// Duration strings must parse; the settings accessors surface the
	// first failure with its field path.
	if _, err := cfg.MonitoringSettings(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := cfg.RecoverySettings(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := cfg.AlertSettings(); err != nil {
		errs = append(errs, err.Error())
	}

	r := cfg.Recovery
	if r.MaxAttempts < 0 {
		errs = append(errs, fmt.Sprintf("recovery.max_attempts: must be non-negative, got %d", r.MaxAttempts))
	}
	if r.BackoffMultiplier != 0 && r.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Sprintf("recovery.backoff_multiplier: must be >= 1, got %v", r.BackoffMultiplier))
	}
	if r.TimeWindowHours < 0 {
		errs = append(errs, fmt.Sprintf("recovery.time_window_hours: must be non-negative, got %v", r.TimeWindowHours))
	}
	if base, err1 := parseDuration(r.BaseDelay, 0); err1 == nil {
		if max, err2 := parseDuration(r.MaxDelay, time.Duration(1<<62)); err2 == nil && base > max {
			errs = append(errs, "recovery.base_delay: must not exceed recovery.max_delay")
		}
	}

	a := cfg.Alerts
	if a.CooldownMinutes < 0 {
		errs = append(errs, fmt.Sprintf("alerts.cooldown_minutes: must be non-negative, got %d", a.CooldownMinutes))
	}
	if a.MaxHistory < 0 {
		errs = append(errs, fmt.Sprintf("alerts.max_history: must be non-negative, got %d", a.MaxHistory))
	}
	if a.FileAlerts && a.FilePath == "" {
		errs = append(errs, "alerts.file_path: required when file_alerts is enabled")
	}
	if a.WebhookAlerts {
		if a.WebhookURL == "" {
			errs = append(errs, "alerts.webhook_url: required when webhook_alerts is enabled")
		} else if u, err := url.Parse(a.WebhookURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("alerts.webhook_url: not a valid URL: %q", a.WebhookURL))
		}
	}
	if a.EmailAlerts {
		switch {
		case a.Email == nil:
			errs = append(errs, "alerts.email: required when email_alerts is enabled")
		default:
			if a.Email.Host == "" {
				errs = append(errs, "alerts.email.host: required when email_alerts is enabled")
			}
			if a.Email.From == "" {
				errs = append(errs, "alerts.email.from: required when email_alerts is enabled")
			}
			if len(a.Email.To) == 0 {
				errs = append(errs, "alerts.email.to: at least one recipient required")
			}
		}
	}

	if cfg.Ops.Port < 0 || cfg.Ops.Port > 65535 {
		errs = append(errs, fmt.Sprintf("ops.port: must be between 0 and 65535, got %d", cfg.Ops.Port))
	}

	for name, w := range cfg.Workers {
		if err := ValidateInstanceID(name); err != nil {
			errs = append(errs, fmt.Sprintf("workers.%s: %v", name, err))
		}
		if w.Cmd == "" {
			errs = append(errs, fmt.Sprintf("workers.%s.cmd: command is required", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// ValidateInstanceID checks if an instance id is usable as a registry key
func ValidateInstanceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: instance id cannot be empty", domain.ErrInvalidConfig)
	}
	if strings.ContainsAny(id, " \t\n/\\") {
		return fmt.Errorf("%w: instance id cannot contain whitespace or path separators", domain.ErrInvalidConfig)
	}
	return nil
}
