package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/keeper/pkg/quota"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML on top of the defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention KEEPER_SECTION_FIELD (e.g., KEEPER_STORAGE_PATH) and always take
// precedence over the file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadDefaultsWithEnvOverrides returns the built-in defaults with
// environment overrides applied. It is used when no configuration file
// exists.
func LoadDefaultsWithEnvOverrides() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies KEEPER_SECTION_FIELD environment overrides.
// Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Storage overrides
	envString("KEEPER_STORAGE_PATH", &cfg.Storage.Path)
	envString("KEEPER_STORAGE_DRIVER", &cfg.Storage.Driver)
	envBool("KEEPER_STORAGE_WAL_MODE", &cfg.Storage.WALMode)
	envDuration("KEEPER_STORAGE_BUSY_TIMEOUT", &cfg.Storage.BusyTimeout)
	envString("KEEPER_STORAGE_RAW_DIR", &cfg.Storage.RawDir)
	envString("KEEPER_STORAGE_CATEGORIES_DIR", &cfg.Storage.CategoriesDir)
	envDuration("KEEPER_STORAGE_DEDUP_TTL", &cfg.Storage.DedupTTL)

	// Retention overrides
	envInt("KEEPER_RETENTION_MAX_AGE_DAYS", &cfg.Retention.MaxAgeDays)
	envInt("KEEPER_RETENTION_MAX_ACCESS_AGE_DAYS", &cfg.Retention.MaxAccessAgeDays)
	envInt("KEEPER_RETENTION_PRIORITY_IMAGE_RETENTION", &cfg.Retention.PriorityImageRetention)
	envInt("KEEPER_RETENTION_FAILURE_RETENTION_DAYS", &cfg.Retention.FailureRetentionDays)

	// Quota overrides
	envInt("KEEPER_QUOTA_MAX_COUNT", &cfg.Quota.MaxCount)
	if val := os.Getenv("KEEPER_QUOTA_MAX_SIZE"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Quota.MaxSize = i
		}
	}
	if val := os.Getenv("KEEPER_QUOTA_STRATEGY"); val != "" {
		cfg.Quota.Strategy = quota.Strategy(val)
	}
	envFloat("KEEPER_QUOTA_WARNING_THRESHOLD", &cfg.Quota.WarningThreshold)
	envFloat("KEEPER_QUOTA_CRITICAL_THRESHOLD", &cfg.Quota.CriticalThreshold)
	envFloat("KEEPER_QUOTA_RESERVED_SPACE_PERCENTAGE", &cfg.Quota.ReservedSpacePercentage)

	// Statistics overrides
	envDuration("KEEPER_STATISTICS_CACHE_TTL", &cfg.Statistics.CacheTTL)
	envInt("KEEPER_STATISTICS_EVENT_RETENTION_DAYS", &cfg.Statistics.EventRetentionDays)

	// Maintenance overrides
	envBool("KEEPER_MAINTENANCE_ENABLED", &cfg.Maintenance.Enabled)
	envString("KEEPER_MAINTENANCE_SCHEDULE", &cfg.Maintenance.Schedule)

	// Resilience overrides
	envInt("KEEPER_RESILIENCE_FAILURE_THRESHOLD", &cfg.Resilience.FailureThreshold)
	envDuration("KEEPER_RESILIENCE_RECOVERY_TIMEOUT", &cfg.Resilience.RecoveryTimeout)

	// Telemetry overrides
	envString("KEEPER_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("KEEPER_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("KEEPER_TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	envBool("KEEPER_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("KEEPER_TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	envString("KEEPER_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("KEEPER_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("KEEPER_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("KEEPER_TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	envFloat("KEEPER_TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	envBool("KEEPER_TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(key string, dst *float64) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
