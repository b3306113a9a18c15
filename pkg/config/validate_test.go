package config

import (
	"errors"
	"strings"
	"testing"

	"mercator-hq/keeper/pkg/cleanup"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "empty storage path",
			mutate:    func(c *Config) { c.Storage.Path = "" },
			wantField: "storage.path",
		},
		{
			name:      "same raw and categories dir",
			mutate:    func(c *Config) { c.Storage.CategoriesDir = c.Storage.RawDir },
			wantField: "storage.categories_dir",
		},
		{
			name:      "negative retention",
			mutate:    func(c *Config) { c.Retention.FailureRetentionDays = -1 },
			wantField: "retention.failure_retention_days",
		},
		{
			name: "negative category retention",
			mutate: func(c *Config) {
				c.Retention.CategoryPolicies = map[string]cleanup.CategoryPolicy{"cats": {MaxAgeDays: -5}}
			},
			wantField: "retention.category_policies.cats.max_age_days",
		},
		{
			name:      "quota thresholds inverted",
			mutate:    func(c *Config) { c.Quota.CriticalThreshold = 0.5 },
			wantField: "quota",
		},
		{
			name:      "negative event retention",
			mutate:    func(c *Config) { c.Statistics.EventRetentionDays = -1 },
			wantField: "statistics.event_retention_days",
		},
		{
			name:      "zero failure threshold",
			mutate:    func(c *Config) { c.Resilience.FailureThreshold = 0 },
			wantField: "resilience.failure_threshold",
		},
		{
			name:      "bad logging level",
			mutate:    func(c *Config) { c.Telemetry.Logging.Level = "trace" },
			wantField: "telemetry.logging.level",
		},
		{
			name: "tracing ratio out of range",
			mutate: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.SampleRatio = 1.5
			},
			wantField: "telemetry.tracing.sample_ratio",
		},
		{
			name:      "relative metrics path",
			mutate:    func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			wantField: "telemetry.metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}

			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for %q, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidate_DisabledMaintenanceSkipsSchedule(t *testing.T) {
	cfg := Default()
	cfg.Maintenance.Enabled = false
	cfg.Maintenance.Schedule = "garbage"

	if err := Validate(cfg); err != nil {
		t.Errorf("disabled maintenance should not validate its schedule: %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if single.Error() != "configuration validation failed: a: bad" {
		t.Errorf("unexpected message %q", single.Error())
	}

	multi := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "bad"},
		{Field: "b", Message: "worse"},
	}}
	if !strings.Contains(multi.Error(), "2 errors") || !strings.Contains(multi.Error(), "b: worse") {
		t.Errorf("unexpected message %q", multi.Error())
	}
}
