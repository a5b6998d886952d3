// Package constants provides shared configuration values used across warden.
package constants

import "time"

// Configuration file defaults
const (
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "warden.yaml"

	// DefaultOpsHost is the default host for the ops HTTP server
	DefaultOpsHost = "127.0.0.1"

	// DefaultOpsPort is the default port for the ops HTTP server
	DefaultOpsPort = 6060
)

// Process manager defaults
const (
	// DefaultPollInterval is how often a monitoring loop checks liveness
	DefaultPollInterval = time.Second

	// DefaultSampleInterval is how often resource usage is refreshed
	DefaultSampleInterval = 5 * time.Second

	// DefaultTerminateTimeout is the grace period before a forced kill
	DefaultTerminateTimeout = 10 * time.Second

	// DefaultShutdownTimeout bounds termination of all processes on shutdown
	DefaultShutdownTimeout = 15 * time.Second
)

// Health monitoring defaults
const (
	// DefaultCheckInterval is the default health check cycle interval
	DefaultCheckInterval = 30 * time.Second

	// DefaultCheckTimeout bounds each individual health check
	DefaultCheckTimeout = 5 * time.Second
)

// Recovery defaults
const (
	// DefaultMaxAttempts is the recovery attempt budget per window
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the first backoff delay
	DefaultBaseDelay = 5 * time.Second

	// DefaultMaxDelay caps the backoff delay
	DefaultMaxDelay = 5 * time.Minute

	// DefaultBackoffMultiplier grows the delay between attempts
	DefaultBackoffMultiplier = 2.0

	// DefaultTimeWindowHours is the rolling attempt window size
	DefaultTimeWindowHours = 1
)

// Alerting defaults
const (
	// DefaultMaxHistory is the alert history capacity
	DefaultMaxHistory = 1000

	// DefaultCooldown suppresses repeated alert delivery per instance+level
	DefaultCooldown = 5 * time.Minute

	// DefaultWebhookTimeout bounds webhook POSTs
	DefaultWebhookTimeout = 10 * time.Second
)
