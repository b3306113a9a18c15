// Package telemetry groups keeper's observability packages.
//
//   - logging: slog setup from configuration, with context fields
//     (operation, tick_id, record_id, transaction_id)
//   - metrics: Prometheus collector implementing the domain observer hooks
//   - tracing: OpenTelemetry spans around maintenance ticks
//   - health: liveness, readiness and version endpoints
//
// `keeper run` serves metrics and health on telemetry.metrics.listen_address.
package telemetry
