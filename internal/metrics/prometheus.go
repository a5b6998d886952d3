package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/warden-sh/warden/internal/domain"
)

// PrometheusCollector implements Collector using Prometheus metrics
type PrometheusCollector struct {
	stateTransitions *prometheus.CounterVec
	processesTracked prometheus.Gauge

	checksPerformed *prometheus.CounterVec
	checksHealthy   *prometheus.CounterVec

	recoveryAttempts  *prometheus.CounterVec
	recoveryExhausted *prometheus.CounterVec
	recoveryBackoff   *prometheus.HistogramVec

	alertDeliveries *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusCollector creates a Prometheus metrics collector with its
// own registry
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	if namespace == "" {
		namespace = "warden"
	}

	c := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
	}

	c.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_state_transitions_total",
			Help:      "Total number of process state transitions",
		},
		[]string{"instance_id", "from_state", "to_state"},
	)

	c.processesTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processes_tracked",
			Help:      "Current number of tracked worker processes",
		},
	)

	c.checksPerformed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_performed_total",
			Help:      "Total number of health check cycles performed",
		},
		[]string{"instance_id", "result"},
	)

	c.checksHealthy = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_healthy_total",
			Help:      "Total number of health check cycles classified healthy",
		},
		[]string{"instance_id"},
	)

	c.recoveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_attempts_total",
			Help:      "Total number of committed recovery attempts",
		},
		[]string{"instance_id"},
	)

	c.recoveryExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_budget_exhausted_total",
			Help:      "Total number of recoveries refused due to an exhausted budget",
		},
		[]string{"instance_id"},
	)

	c.recoveryBackoff = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recovery_backoff_duration_seconds",
			Help:      "Backoff delays before recovery attempts",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"instance_id"},
	)

	c.alertDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_deliveries_total",
			Help:      "Total number of alert handler delivery attempts",
		},
		[]string{"handler", "status"},
	)

	c.registry.MustRegister(
		c.stateTransitions,
		c.processesTracked,
		c.checksPerformed,
		c.checksHealthy,
		c.recoveryAttempts,
		c.recoveryExhausted,
		c.recoveryBackoff,
		c.alertDeliveries,
	)

	return c
}

// StateTransition records a process status change
func (c *PrometheusCollector) StateTransition(instanceID string, from, to domain.ProcessStatus) {
	c.stateTransitions.WithLabelValues(instanceID, from.String(), to.String()).Inc()
}

// ProcessesTracked records the current number of tracked instances
func (c *PrometheusCollector) ProcessesTracked(n int) {
	c.processesTracked.Set(float64(n))
}

// CheckPerformed records one completed health check cycle
func (c *PrometheusCollector) CheckPerformed(instanceID string, overall domain.HealthLevel) {
	c.checksPerformed.WithLabelValues(instanceID, overall.String()).Inc()
	if overall == domain.HealthHealthy {
		c.checksHealthy.WithLabelValues(instanceID).Inc()
	}
}

// RecoveryAttempt records a committed recovery attempt
func (c *PrometheusCollector) RecoveryAttempt(instanceID string) {
	c.recoveryAttempts.WithLabelValues(instanceID).Inc()
}

// RecoveryExhausted records a refusal due to an exhausted budget
func (c *PrometheusCollector) RecoveryExhausted(instanceID string) {
	c.recoveryExhausted.WithLabelValues(instanceID).Inc()
}

// RecoveryBackoff records the backoff delay before an attempt
func (c *PrometheusCollector) RecoveryBackoff(instanceID string, delay time.Duration) {
	c.recoveryBackoff.WithLabelValues(instanceID).Observe(delay.Seconds())
}

// AlertDelivered records one handler delivery outcome
func (c *PrometheusCollector) AlertDelivered(handler string, ok bool) {
	status := "success"
	if !ok {
		status = "failure"
	}
	c.alertDeliveries.WithLabelValues(handler, status).Inc()
}

// Registry returns the Prometheus registry for HTTP handler setup
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Compile-time interface compliance check
var _ Collector = (*PrometheusCollector)(nil)
