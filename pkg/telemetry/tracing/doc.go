// Package tracing exports maintenance ticks as OpenTelemetry spans over
// OTLP gRPC.
//
// Tracer satisfies maintenance.Tracer, so a runner wraps each tick in a
// "maintenance.tick" span with one child span per step:
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//	runner.Tracer = tracer
//
// When telemetry.tracing.enabled is false the tracer is a no-op.
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: otel-collector:4317
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.25
package tracing
