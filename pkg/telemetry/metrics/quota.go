package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// QuotaMetrics tracks quota usage and enforcement.
//
// Metrics:
//   - keeper_quota_usage_ratio: Usage fraction under the configured strategy
//   - keeper_quota_enforcements_total: Enforcement runs that marked records
//   - keeper_quota_marked_files_total: Records marked for deletion
//   - keeper_quota_marked_bytes_total: Bytes held by records marked for deletion
type QuotaMetrics struct {
	usage        *prometheus.GaugeVec
	enforcements prometheus.Counter
	markedFiles  prometheus.Counter
	markedBytes  prometheus.Counter
}

// NewQuotaMetrics creates and registers quota metrics with the provided registry.
func NewQuotaMetrics(registry *prometheus.Registry) *QuotaMetrics {
	qm := &QuotaMetrics{
		usage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "quota",
				Name:      "usage_ratio",
				Help:      "Current quota usage as a fraction of the ceiling",
			},
			[]string{"strategy"},
		),
		enforcements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "quota",
			Name:      "enforcements_total",
			Help:      "Total number of quota enforcement runs that marked records",
		}),
		markedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "quota",
			Name:      "marked_files_total",
			Help:      "Total number of records marked for deletion by quota enforcement",
		}),
		markedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "quota",
			Name:      "marked_bytes_total",
			Help:      "Total bytes held by records marked for deletion by quota enforcement",
		}),
	}

	registry.MustRegister(qm.usage, qm.enforcements, qm.markedFiles, qm.markedBytes)
	return qm
}

// SetUsage sets the usage ratio. Only the active strategy keeps a series.
func (qm *QuotaMetrics) SetUsage(strategy string, usage float64) {
	qm.usage.Reset()
	qm.usage.WithLabelValues(strategy).Set(usage)
}

// RecordEnforcement records one enforcement run.
func (qm *QuotaMetrics) RecordEnforcement(filesMarked int, bytesMarked int64) {
	qm.enforcements.Inc()
	qm.markedFiles.Add(float64(filesMarked))
	qm.markedBytes.Add(float64(bytesMarked))
}
