package config

import (
	"time"

	"mercator-hq/keeper/pkg/cleanup"
	"mercator-hq/keeper/pkg/quota"
)

// Config is the root configuration structure for keeper.
type Config struct {
	// Storage configures the SQLite database and the raw and categorized
	// storage roots.
	Storage StorageConfig `yaml:"storage"`

	// Retention is the cleanup retention policy, including per-category
	// overrides.
	Retention cleanup.RetentionPolicy `yaml:"retention"`

	// Quota contains the count and size ceilings and enforcement thresholds.
	Quota quota.Config `yaml:"quota"`

	// Statistics configures the metrics cache and event retention.
	Statistics StatisticsConfig `yaml:"statistics"`

	// Maintenance configures the periodic maintenance tick.
	Maintenance MaintenanceConfig `yaml:"maintenance"`

	// Resilience configures the filesystem circuit breaker.
	Resilience ResilienceConfig `yaml:"resilience"`

	// Telemetry contains logging, metrics and health configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StorageConfig contains storage configuration.
type StorageConfig struct {
	// Path is the SQLite database file path.
	// Default: "data/keeper.db"
	Path string `yaml:"path"`

	// Driver selects the SQLite driver.
	// Options: "sqlite3" (cgo, mattn/go-sqlite3), "sqlite" (pure Go, modernc.org/sqlite)
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// RawDir is the directory holding ingested files.
	// Default: "data/raw"
	RawDir string `yaml:"raw_dir"`

	// CategoriesDir is the directory holding categorized copies.
	// Default: "data/categories"
	CategoriesDir string `yaml:"categories_dir"`

	// DedupTTL is how long a duplicate-detection cache entry stays valid.
	// Default: 24h
	DedupTTL time.Duration `yaml:"dedup_ttl"`
}

// StatisticsConfig contains statistics configuration.
type StatisticsConfig struct {
	// CacheTTL is how long computed metrics are served from cache.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CacheSize is the number of cached metric results.
	// Default: 64
	CacheSize int `yaml:"cache_size"`

	// EventRetentionDays prunes events older than this during maintenance.
	// Zero keeps events forever.
	// Default: 90
	EventRetentionDays int `yaml:"event_retention_days"`
}

// MaintenanceConfig contains maintenance scheduling configuration.
type MaintenanceConfig struct {
	// Enabled runs maintenance ticks from `keeper run`.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard five-field cron expression.
	// Default: "*/15 * * * *"
	Schedule string `yaml:"schedule"`
}

// ResilienceConfig contains circuit breaker configuration.
type ResilienceConfig struct {
	// FailureThreshold is the number of consecutive filesystem failures
	// that opens the breaker.
	// Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// RecoveryTimeout is how long the breaker stays open before a trial
	// operation is allowed.
	// Default: 60s
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics endpoint configuration.
type MetricsConfig struct {
	// Enabled serves Prometheus metrics from `keeper run`.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address of the metrics and health server.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing configuration. Maintenance
// ticks and their steps are exported as spans.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "keeper"
	ServiceName string `yaml:"service_name"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	// CheckTimeout bounds each health check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
