package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/keeper/pkg/quota"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "storage.path").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateRetention(cfg)...)
	errs = append(errs, validateQuota(&cfg.Quota)...)
	errs = append(errs, validateStatistics(&cfg.Statistics)...)
	errs = append(errs, validateMaintenance(&cfg.Maintenance)...)
	errs = append(errs, validateResilience(&cfg.Resilience)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "storage.path",
			Message: "database path is required",
		})
	}

	validDrivers := map[string]bool{"sqlite3": true, "sqlite": true}
	if !validDrivers[cfg.Driver] {
		errs = append(errs, FieldError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("invalid driver %q: must be 'sqlite3' or 'sqlite'", cfg.Driver),
		})
	}

	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.busy_timeout",
			Message: "busy timeout must be non-negative",
		})
	}
	if cfg.DedupTTL < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.dedup_ttl",
			Message: "dedup TTL must be non-negative",
		})
	}

	if cfg.RawDir != "" && cfg.RawDir == cfg.CategoriesDir {
		errs = append(errs, FieldError{
			Field:   "storage.categories_dir",
			Message: "categories directory must differ from the raw directory",
		})
	}

	return errs
}

func validateRetention(cfg *Config) []FieldError {
	var errs []FieldError
	policy := cfg.Retention

	nonNegative := []struct {
		field string
		value int
	}{
		{"retention.max_age_days", policy.MaxAgeDays},
		{"retention.max_access_age_days", policy.MaxAccessAgeDays},
		{"retention.priority_image_retention", policy.PriorityImageRetention},
		{"retention.failure_retention_days", policy.FailureRetentionDays},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			errs = append(errs, FieldError{
				Field:   f.field,
				Message: "must be non-negative",
			})
		}
	}

	for category, catPolicy := range policy.CategoryPolicies {
		prefix := fmt.Sprintf("retention.category_policies.%s", category)
		if catPolicy.MaxAgeDays < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_age_days",
				Message: "must be non-negative",
			})
		}
		if catPolicy.MaxAccessAgeDays < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_access_age_days",
				Message: "must be non-negative",
			})
		}
	}

	return errs
}

func validateQuota(cfg *quota.Config) []FieldError {
	if err := cfg.Validate(); err != nil {
		return []FieldError{{
			Field:   "quota",
			Message: err.Error(),
		}}
	}
	return nil
}

func validateStatistics(cfg *StatisticsConfig) []FieldError {
	var errs []FieldError

	if cfg.CacheTTL < 0 {
		errs = append(errs, FieldError{
			Field:   "statistics.cache_ttl",
			Message: "cache TTL must be non-negative",
		})
	}
	if cfg.CacheSize < 0 {
		errs = append(errs, FieldError{
			Field:   "statistics.cache_size",
			Message: "cache size must be non-negative",
		})
	}
	if cfg.EventRetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "statistics.event_retention_days",
			Message: "event retention must be non-negative",
		})
	}

	return errs
}

func validateMaintenance(cfg *MaintenanceConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return []FieldError{{
			Field:   "maintenance.schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule, err),
		}}
	}
	return nil
}

func validateResilience(cfg *ResilienceConfig) []FieldError {
	var errs []FieldError

	if cfg.FailureThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   "resilience.failure_threshold",
			Message: "failure threshold must be at least 1",
		})
	}
	if cfg.RecoveryTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "resilience.recovery_timeout",
			Message: "recovery timeout must be positive",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.ListenAddress == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.listen_address",
				Message: "listen address is required when metrics are enabled",
			})
		}
		if cfg.Metrics.Path == "" || cfg.Metrics.Path[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with /",
			})
		}
	}

	if cfg.Tracing.Enabled {
		validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
		if !validSamplers[cfg.Tracing.Sampler] {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0.0 and 1.0",
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
	}

	if cfg.Health.CheckTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must be non-negative",
		})
	}

	return errs
}
