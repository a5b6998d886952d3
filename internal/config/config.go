package config

import (
	"fmt"
	"time"

	"github.com/warden-sh/warden/internal/constants"
	"github.com/warden-sh/warden/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level warden configuration as it appears on
// disk. Duration fields are strings parsed with time.ParseDuration; the
// Settings() accessors return the resolved runtime forms.
type Config struct {
	EnvFile          string                  `yaml:"env_file,omitempty"`
	HealthMonitoring MonitoringConfig        `yaml:"health_monitoring"`
	Recovery         RecoveryConfig          `yaml:"recovery"`
	Alerts           AlertConfig             `yaml:"alerts"`
	Ops              OpsConfig               `yaml:"ops"`
	Workers          map[string]WorkerConfig `yaml:"workers,omitempty"`
}

// MonitoringConfig defines health monitoring configuration in YAML
type MonitoringConfig struct {
	Enabled        *bool       `yaml:"enabled,omitempty"`
	CheckInterval  string      `yaml:"check_interval,omitempty"`
	Process        CheckConfig `yaml:"process"`
	Session        CheckConfig `yaml:"session"`
	Workspace      CheckConfig `yaml:"workspace"`
	Responsiveness CheckConfig `yaml:"responsiveness"`
}

// CheckConfig defines one health sub-check in YAML
type CheckConfig struct {
	Enabled    *bool              `yaml:"enabled,omitempty"`
	Timeout    string             `yaml:"timeout,omitempty"`
	Thresholds map[string]float64 `yaml:"thresholds,omitempty"`
}

// RecoveryConfig defines the recovery attempt budget and backoff in YAML
type RecoveryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts,omitempty"`
	BaseDelay         string  `yaml:"base_delay,omitempty"`
	MaxDelay          string  `yaml:"max_delay,omitempty"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier,omitempty"`
	TimeWindowHours   float64 `yaml:"time_window_hours,omitempty"`
}

// AlertConfig defines alert delivery configuration in YAML
type AlertConfig struct {
	Enabled         *bool        `yaml:"enabled,omitempty"`
	CooldownMinutes int          `yaml:"cooldown_minutes,omitempty"`
	MaxHistory      int          `yaml:"max_history,omitempty"`
	LogAlerts       *bool        `yaml:"log_alerts,omitempty"`
	FileAlerts      bool         `yaml:"file_alerts,omitempty"`
	FilePath        string       `yaml:"file_path,omitempty"`
	WebhookAlerts   bool         `yaml:"webhook_alerts,omitempty"`
	WebhookURL      string       `yaml:"webhook_url,omitempty"`
	WebhookTimeout  string       `yaml:"webhook_timeout,omitempty"`
	EmailAlerts     bool         `yaml:"email_alerts,omitempty"`
	Email           *EmailConfig `yaml:"email,omitempty"`
}

// EmailConfig defines SMTP delivery settings
type EmailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	StartTLS bool     `yaml:"starttls,omitempty"`
}

// OpsConfig defines the metrics/health HTTP endpoint
type OpsConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// WorkerConfig describes one managed worker started by the run command
type WorkerConfig struct {
	Cmd       string            `yaml:"cmd"`
	WorkDir   string            `yaml:"workdir,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	EnvFile   string            `yaml:"env_file,omitempty"`
	Session   string            `yaml:"session,omitempty"`
	Workspace string            `yaml:"workspace,omitempty"`
}

// MonitoringSettings is the resolved runtime form of MonitoringConfig
type MonitoringSettings struct {
	Enabled        bool
	CheckInterval  time.Duration
	Process        CheckSettings
	Session        CheckSettings
	Workspace      CheckSettings
	Responsiveness CheckSettings
}

// CheckSettings is the resolved runtime form of one sub-check
type CheckSettings struct {
	Enabled    bool
	Timeout    time.Duration
	Thresholds map[string]float64
}

// RecoverySettings is the resolved runtime form of RecoveryConfig
type RecoverySettings struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	TimeWindow        time.Duration
}

// AlertSettings is the resolved runtime form of AlertConfig
type AlertSettings struct {
	Enabled        bool
	Cooldown       time.Duration
	MaxHistory     int
	LogAlerts      bool
	FileAlerts     bool
	FilePath       string
	WebhookAlerts  bool
	WebhookURL     string
	WebhookTimeout time.Duration
	EmailAlerts    bool
	Email          *EmailConfig
}

// OpsSettings is the resolved runtime form of OpsConfig
type OpsSettings struct {
	Enabled bool
	Host    string
	Port    int
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	return &Config{}
}

// Parse parses configuration from YAML bytes and validates it. Invalid
// combinations are rejected here, at construction time.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Marshal serializes the configuration to YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// parseDuration parses an optional duration string, falling back to def
// when empty
func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid duration %q", domain.ErrInvalidConfig, s)
	}
	return d, nil
}

func (c CheckConfig) settings(defEnabled bool) (CheckSettings, error) {
	timeout, err := parseDuration(c.Timeout, constants.DefaultCheckTimeout)
	if err != nil {
		return CheckSettings{}, err
	}
	return CheckSettings{
		Enabled:    boolOr(c.Enabled, defEnabled),
		Timeout:    timeout,
		Thresholds: c.Thresholds,
	}, nil
}

// MonitoringSettings resolves the health monitoring configuration,
// applying defaults. Process and workspace checks default to enabled;
// session and responsiveness checks require explicit opt-in because they
// depend on injected collaborators.
func (c *Config) MonitoringSettings() (MonitoringSettings, error) {
	m := c.HealthMonitoring

	interval, err := parseDuration(m.CheckInterval, constants.DefaultCheckInterval)
	if err != nil {
		return MonitoringSettings{}, fmt.Errorf("health_monitoring.check_interval: %w", err)
	}

	out := MonitoringSettings{
		Enabled:       boolOr(m.Enabled, true),
		CheckInterval: interval,
	}

	if out.Process, err = m.Process.settings(true); err != nil {
		return MonitoringSettings{}, fmt.Errorf("health_monitoring.process: %w", err)
	}
	if out.Session, err = m.Session.settings(false); err != nil {
		return MonitoringSettings{}, fmt.Errorf("health_monitoring.session: %w", err)
	}
	if out.Workspace, err = m.Workspace.settings(true); err != nil {
		return MonitoringSettings{}, fmt.Errorf("health_monitoring.workspace: %w", err)
	}
	if out.Responsiveness, err = m.Responsiveness.settings(false); err != nil {
		return MonitoringSettings{}, fmt.Errorf("health_monitoring.responsiveness: %w", err)
	}

	return out, nil
}

// RecoverySettings resolves the recovery configuration, applying defaults
func (c *Config) RecoverySettings() (RecoverySettings, error) {
	r := c.Recovery

	base, err := parseDuration(r.BaseDelay, constants.DefaultBaseDelay)
	if err != nil {
		return RecoverySettings{}, fmt.Errorf("recovery.base_delay: %w", err)
	}
	max, err := parseDuration(r.MaxDelay, constants.DefaultMaxDelay)
	if err != nil {
		return RecoverySettings{}, fmt.Errorf("recovery.max_delay: %w", err)
	}

	out := RecoverySettings{
		MaxAttempts:       r.MaxAttempts,
		BaseDelay:         base,
		MaxDelay:          max,
		BackoffMultiplier: r.BackoffMultiplier,
		TimeWindow:        time.Duration(r.TimeWindowHours * float64(time.Hour)),
	}
	if out.MaxAttempts == 0 {
		out.MaxAttempts = constants.DefaultMaxAttempts
	}
	if out.BackoffMultiplier == 0 {
		out.BackoffMultiplier = constants.DefaultBackoffMultiplier
	}
	if out.TimeWindow == 0 {
		out.TimeWindow = constants.DefaultTimeWindowHours * time.Hour
	}

	return out, nil
}

// AlertSettings resolves the alert configuration, applying defaults
func (c *Config) AlertSettings() (AlertSettings, error) {
	a := c.Alerts

	webhookTimeout, err := parseDuration(a.WebhookTimeout, constants.DefaultWebhookTimeout)
	if err != nil {
		return AlertSettings{}, fmt.Errorf("alerts.webhook_timeout: %w", err)
	}

	out := AlertSettings{
		Enabled:        boolOr(a.Enabled, true),
		Cooldown:       time.Duration(a.CooldownMinutes) * time.Minute,
		MaxHistory:     a.MaxHistory,
		LogAlerts:      boolOr(a.LogAlerts, true),
		FileAlerts:     a.FileAlerts,
		FilePath:       a.FilePath,
		WebhookAlerts:  a.WebhookAlerts,
		WebhookURL:     a.WebhookURL,
		WebhookTimeout: webhookTimeout,
		EmailAlerts:    a.EmailAlerts,
		Email:          a.Email,
	}
	if a.CooldownMinutes == 0 {
		out.Cooldown = constants.DefaultCooldown
	}
	if out.MaxHistory == 0 {
		out.MaxHistory = constants.DefaultMaxHistory
	}

	return out, nil
}

// OpsSettings resolves the ops endpoint configuration, applying defaults
func (c *Config) OpsSettings() OpsSettings {
	o := c.Ops
	out := OpsSettings{
		Enabled: boolOr(o.Enabled, true),
		Host:    o.Host,
		Port:    o.Port,
	}
	if out.Host == "" {
		out.Host = constants.DefaultOpsHost
	}
	if out.Port == 0 {
		out.Port = constants.DefaultOpsPort
	}
	return out
}
