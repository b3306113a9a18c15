package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/keeper/pkg/lifecycle"
	"mercator-hq/keeper/pkg/resilience"
)

var allStatuses = []lifecycle.ProcessingStatus{
	lifecycle.StatusPending,
	lifecycle.StatusProcessing,
	lifecycle.StatusCompleted,
	lifecycle.StatusFailed,
	lifecycle.StatusMarkedForDeletion,
}

// RecordMetrics tracks lifecycle records, statistics events and anomalies.
//
// Metrics:
//   - keeper_records: Lifecycle records by status
//   - keeper_events_total: Statistics events by type
//   - keeper_anomalies_total: Detected anomalies by type and severity
type RecordMetrics struct {
	byStatus  *prometheus.GaugeVec
	events    *prometheus.CounterVec
	anomalies *prometheus.CounterVec
}

// NewRecordMetrics creates and registers record metrics with the provided registry.
func NewRecordMetrics(registry *prometheus.Registry) *RecordMetrics {
	rm := &RecordMetrics{
		byStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "records",
				Help:      "Number of lifecycle records by processing status",
			},
			[]string{"status"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "events_total",
				Help:      "Total number of statistics events recorded",
			},
			[]string{"type"},
		),
		anomalies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "anomalies_total",
				Help:      "Total number of detected anomalies",
			},
			[]string{"type", "severity"},
		),
	}

	registry.MustRegister(rm.byStatus, rm.events, rm.anomalies)
	return rm
}

// SetByStatus publishes record counts for every known status.
func (rm *RecordMetrics) SetByStatus(counts map[lifecycle.ProcessingStatus]int) {
	for _, status := range allStatuses {
		rm.byStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// RecordEvent counts one statistics event.
func (rm *RecordMetrics) RecordEvent(eventType string) {
	rm.events.WithLabelValues(eventType).Inc()
}

// RecordAnomaly counts one detected anomaly.
func (rm *RecordMetrics) RecordAnomaly(anomalyType, severity string) {
	rm.anomalies.WithLabelValues(anomalyType, severity).Inc()
}

// StateReader exposes a circuit breaker's state.
type StateReader interface {
	State() resilience.State
}

// RegisterCircuitBreaker publishes the breaker's state as
// keeper_circuit_breaker_state{breaker=name}: 0 closed, 1 half-open, 2 open.
// The value is read at scrape time.
func (c *Collector) RegisterCircuitBreaker(name string, breaker StateReader) error {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "circuit_breaker_state",
			Help:        "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			ConstLabels: prometheus.Labels{"breaker": name},
		},
		func() float64 { return stateValue(breaker.State()) },
	)
	return c.registry.Register(gauge)
}

func stateValue(state resilience.State) float64 {
	switch state {
	case resilience.StateOpen:
		return 2
	case resilience.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
