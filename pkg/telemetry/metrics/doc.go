// Package metrics exposes keeper's Prometheus metrics.
//
// A Collector registers every metric on its own registry and implements the
// observer hooks of the domain packages:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	cleaner := cleanup.NewManager(lm, cleanup.WithObserver(collector))
//	quotas := quota.NewManager(lm, cfg.Quota, quota.WithObserver(collector))
//	tracker.SetAnomalyObserver(collector)
//	runner.Gauge = collector
//
// Exported series:
//
//	keeper_cleanup_files_removed_total{pass}
//	keeper_cleanup_bytes_freed_total{pass}
//	keeper_cleanup_errors_total{type}
//	keeper_operation_duration_seconds{operation}
//	keeper_quota_usage_ratio{strategy}
//	keeper_quota_enforcements_total
//	keeper_quota_marked_files_total
//	keeper_quota_marked_bytes_total
//	keeper_records{status}
//	keeper_events_total{type}
//	keeper_anomalies_total{type,severity}
//	keeper_circuit_breaker_state{breaker}
//
// Go runtime and process collectors are registered too.
package metrics
