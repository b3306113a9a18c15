package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/keeper/pkg/config"
	"mercator-hq/keeper/pkg/maintenance"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.TracingConfig
		wantErr     bool
		wantEnabled bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:   "disabled",
			config: &config.TracingConfig{Enabled: false},
		},
		{
			name: "enabled",
			config: &config.TracingConfig{
				Enabled:     true,
				ServiceName: "keeper-test",
				Sampler:     SamplerAlways,
				Endpoint:    "localhost:4317",
				Insecure:    true,
			},
			wantEnabled: true,
		},
		{
			name: "invalid sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  "sometimes",
				Endpoint: "localhost:4317",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer tracer.Shutdown(context.Background())

			if tracer.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.wantEnabled)
			}
		})
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.5, false},
		{SamplerRatio, 1.5, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		if _, err := createSampler(tt.strategy, tt.ratio); (err != nil) != tt.wantErr {
			t.Errorf("createSampler(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
		}
	}
}

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tracer, err := newTracer(&config.TracingConfig{
		Enabled:     true,
		ServiceName: "keeper-test",
		Sampler:     SamplerAlways,
	}, "test", sdktrace.WithSpanProcessor(recorder))
	if err != nil {
		t.Fatalf("newTracer() error = %v", err)
	}
	t.Cleanup(func() { tracer.Shutdown(context.Background()) })
	return tracer, recorder
}

func TestStartSpan(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	ctx, endTick := tracer.StartSpan(context.Background(), "maintenance.tick")
	if TraceID(ctx) == "" {
		t.Error("expected a trace ID inside the span")
	}
	_, endStep := tracer.StartSpan(ctx, "maintenance.checkpoint")
	endStep(errors.New("database is locked"))
	endTick(nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}

	step, tick := spans[0], spans[1]
	if step.Name() != "maintenance.checkpoint" || tick.Name() != "maintenance.tick" {
		t.Errorf("span names = %s, %s", step.Name(), tick.Name())
	}
	if step.Parent().SpanID() != tick.SpanContext().SpanID() {
		t.Error("step span should be a child of the tick span")
	}
	if step.Status().Code != codes.Error || step.Status().Description != "database is locked" {
		t.Errorf("step status = %+v", step.Status())
	}
	if len(step.Events()) != 1 {
		t.Errorf("step should record the error as an event, got %d events", len(step.Events()))
	}
	if tick.Status().Code != codes.Ok {
		t.Errorf("tick status = %+v", tick.Status())
	}
}

func TestRunnerSpans(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	runner := maintenance.NewRunner(maintenance.Config{})
	runner.Tracer = tracer
	runner.RunOnce(context.Background())

	spans := recorder.Ended()
	if len(spans) != 8 {
		t.Fatalf("ended spans = %d, want 8", len(spans))
	}
	if last := spans[len(spans)-1]; last.Name() != "maintenance.tick" {
		t.Errorf("last span = %s, want maintenance.tick", last.Name())
	}
}

func TestTraceID_NoSpan(t *testing.T) {
	if id := TraceID(context.Background()); id != "" {
		t.Errorf("TraceID() = %q, want empty", id)
	}
}
