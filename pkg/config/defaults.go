package config

import (
	"time"

	"mercator-hq/keeper/pkg/cleanup"
	"mercator-hq/keeper/pkg/quota"
)

// Default values for configuration fields.
const (
	// Storage defaults
	DefaultStoragePath          = "data/keeper.db"
	DefaultStorageDriver        = "sqlite3"
	DefaultStorageWALMode       = true
	DefaultStorageBusyTimeout   = 5 * time.Second
	DefaultStorageRawDir        = "data/raw"
	DefaultStorageCategoriesDir = "data/categories"
	DefaultStorageDedupTTL      = 24 * time.Hour

	// Statistics defaults
	DefaultStatisticsCacheTTL           = 5 * time.Minute
	DefaultStatisticsCacheSize          = 64
	DefaultStatisticsEventRetentionDays = 90

	// Maintenance defaults
	DefaultMaintenanceEnabled  = true
	DefaultMaintenanceSchedule = "*/15 * * * *"

	// Resilience defaults
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "json"
	DefaultMetricsEnabled       = true
	DefaultMetricsListenAddress = "127.0.0.1:9090"
	DefaultMetricsPath          = "/metrics"
	DefaultTracingServiceName   = "keeper"
	DefaultTracingSampler       = "ratio"
	DefaultTracingSampleRatio   = 0.1
	DefaultTracingEndpoint      = "localhost:4317"
	DefaultTracingTimeout       = 10 * time.Second
	DefaultHealthCheckTimeout   = 5 * time.Second
)

// Default returns a configuration with every field set to its default.
// LoadConfig decodes YAML on top of it, so boolean fields absent from the
// file keep their defaults.
func Default() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			WALMode: DefaultStorageWALMode,
		},
		Retention: cleanup.DefaultRetentionPolicy(),
		Quota:     quota.DefaultConfig(),
		Statistics: StatisticsConfig{
			EventRetentionDays: DefaultStatisticsEventRetentionDays,
		},
		Maintenance: MaintenanceConfig{
			Enabled: DefaultMaintenanceEnabled,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any fields that have zero values.
// It is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Storage defaults
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DefaultStorageDriver
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = DefaultStorageBusyTimeout
	}
	if cfg.Storage.RawDir == "" {
		cfg.Storage.RawDir = DefaultStorageRawDir
	}
	if cfg.Storage.CategoriesDir == "" {
		cfg.Storage.CategoriesDir = DefaultStorageCategoriesDir
	}
	if cfg.Storage.DedupTTL == 0 {
		cfg.Storage.DedupTTL = DefaultStorageDedupTTL
	}

	// Quota strategy and thresholds; zero ceilings are meaningful.
	defaults := quota.DefaultConfig()
	if cfg.Quota.Strategy == "" {
		cfg.Quota.Strategy = defaults.Strategy
	}
	if cfg.Quota.WarningThreshold == 0 {
		cfg.Quota.WarningThreshold = defaults.WarningThreshold
	}
	if cfg.Quota.CriticalThreshold == 0 {
		cfg.Quota.CriticalThreshold = defaults.CriticalThreshold
	}

	// Statistics defaults
	if cfg.Statistics.CacheTTL == 0 {
		cfg.Statistics.CacheTTL = DefaultStatisticsCacheTTL
	}
	if cfg.Statistics.CacheSize == 0 {
		cfg.Statistics.CacheSize = DefaultStatisticsCacheSize
	}

	// Maintenance defaults
	if cfg.Maintenance.Schedule == "" {
		cfg.Maintenance.Schedule = DefaultMaintenanceSchedule
	}

	// Resilience defaults
	if cfg.Resilience.FailureThreshold == 0 {
		cfg.Resilience.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Resilience.RecoveryTimeout == 0 {
		cfg.Resilience.RecoveryTimeout = DefaultRecoveryTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.Sampler == DefaultTracingSampler && cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
