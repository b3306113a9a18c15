package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CleanupMetrics tracks coordinated cleanup.
//
// Metrics:
//   - keeper_cleanup_files_removed_total: Files removed by pass (orphans, raw, categorized)
//   - keeper_cleanup_bytes_freed_total: Bytes freed by pass
//   - keeper_cleanup_errors_total: Cleanup errors by type
type CleanupMetrics struct {
	filesRemoved *prometheus.CounterVec
	bytesFreed   *prometheus.CounterVec
	errors       *prometheus.CounterVec
}

// NewCleanupMetrics creates and registers cleanup metrics with the provided registry.
func NewCleanupMetrics(registry *prometheus.Registry) *CleanupMetrics {
	cm := &CleanupMetrics{
		filesRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "cleanup",
				Name:      "files_removed_total",
				Help:      "Total number of files removed by cleanup",
			},
			[]string{"pass"},
		),

		bytesFreed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "cleanup",
				Name:      "bytes_freed_total",
				Help:      "Total number of bytes freed by cleanup",
			},
			[]string{"pass"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "cleanup",
				Name:      "errors_total",
				Help:      "Total number of cleanup errors",
			},
			[]string{"type"},
		),
	}

	registry.MustRegister(cm.filesRemoved, cm.bytesFreed, cm.errors)
	return cm
}

// RecordPass records the outcome of one cleanup pass.
func (cm *CleanupMetrics) RecordPass(pass string, filesRemoved int, bytesFreed int64) {
	cm.filesRemoved.WithLabelValues(pass).Add(float64(filesRemoved))
	cm.bytesFreed.WithLabelValues(pass).Add(float64(bytesFreed))
}

// RecordError records a cleanup error.
func (cm *CleanupMetrics) RecordError(errorType string) {
	cm.errors.WithLabelValues(errorType).Inc()
}
