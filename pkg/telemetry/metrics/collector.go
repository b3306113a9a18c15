package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/keeper/pkg/cleanup"
	"mercator-hq/keeper/pkg/config"
	"mercator-hq/keeper/pkg/lifecycle"
	"mercator-hq/keeper/pkg/maintenance"
	"mercator-hq/keeper/pkg/quota"
	"mercator-hq/keeper/pkg/stats"
)

// Namespace prefixes every keeper metric.
const Namespace = "keeper"

var (
	_ cleanup.Observer        = (*Collector)(nil)
	_ quota.Observer          = (*Collector)(nil)
	_ stats.AnomalyObserver   = (*Collector)(nil)
	_ maintenance.StatusGauge = (*Collector)(nil)
)

// Collector owns keeper's Prometheus metrics. It implements the observer
// interfaces of the cleanup, quota and stats packages and the maintenance
// status gauge, so one instance can be handed to every component.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	cleanup    *CleanupMetrics
	quota      *QuotaMetrics
	records    *RecordMetrics
	operations *prometheus.HistogramVec
}

// NewCollector creates a collector and registers its metrics with registry.
// If registry is nil a fresh one is created. Go runtime and process
// collectors are registered alongside.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		enabled:  cfg == nil || cfg.Enabled,
		registry: registry,
		cleanup:  NewCleanupMetrics(registry),
		quota:    NewQuotaMetrics(registry),
		records:  NewRecordMetrics(registry),
		operations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of cleanup and quota operations in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		c.operations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// ObserveCleanup records files removed and bytes freed by one cleanup pass.
func (c *Collector) ObserveCleanup(pass string, filesRemoved int, bytesFreed int64) {
	if !c.enabled {
		return
	}
	c.cleanup.RecordPass(pass, filesRemoved, bytesFreed)
}

// ObserveCleanupError records a cleanup error by type
// (e.g., "file_deletion_error", "circuit_open").
func (c *Collector) ObserveCleanupError(errorType string) {
	if !c.enabled {
		return
	}
	c.cleanup.RecordError(errorType)
}

// ObserveOperation records the duration of a named operation.
func (c *Collector) ObserveOperation(operation string, duration time.Duration) {
	if !c.enabled {
		return
	}
	c.operations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveQuotaUsage sets the current quota usage ratio.
func (c *Collector) ObserveQuotaUsage(strategy string, usage float64) {
	if !c.enabled {
		return
	}
	c.quota.SetUsage(strategy, usage)
}

// ObserveQuotaEnforcement records records marked by quota enforcement.
func (c *Collector) ObserveQuotaEnforcement(filesMarked int, bytesMarked int64) {
	if !c.enabled {
		return
	}
	c.quota.RecordEnforcement(filesMarked, bytesMarked)
}

// ObserveAnomaly counts a detected anomaly.
func (c *Collector) ObserveAnomaly(anomalyType string, severity string) {
	if !c.enabled {
		return
	}
	c.records.RecordAnomaly(anomalyType, severity)
}

// SetRecordsByStatus publishes the number of lifecycle records per status.
// Statuses missing from counts are reported as zero.
func (c *Collector) SetRecordsByStatus(counts map[lifecycle.ProcessingStatus]int) {
	if !c.enabled {
		return
	}
	c.records.SetByStatus(counts)
}

// InstrumentEvents wraps next so that every statistics event it receives is
// also counted by type.
func (c *Collector) InstrumentEvents(next lifecycle.EventRecorder) lifecycle.EventRecorder {
	return &instrumentedRecorder{next: next, collector: c}
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

type instrumentedRecorder struct {
	next      lifecycle.EventRecorder
	collector *Collector
}

func (r *instrumentedRecorder) RecordProcessingEvent(ctx context.Context, eventType lifecycle.EventType, metadata map[string]any) {
	if r.collector.enabled {
		r.collector.records.RecordEvent(string(eventType))
	}
	if r.next != nil {
		r.next.RecordProcessingEvent(ctx, eventType, metadata)
	}
}
