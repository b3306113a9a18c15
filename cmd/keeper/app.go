package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/keeper/pkg/cleanup"
	"mercator-hq/keeper/pkg/cli"
	"mercator-hq/keeper/pkg/config"
	"mercator-hq/keeper/pkg/lifecycle"
	"mercator-hq/keeper/pkg/lifecycle/storage"
	"mercator-hq/keeper/pkg/maintenance"
	"mercator-hq/keeper/pkg/quota"
	"mercator-hq/keeper/pkg/resilience"
	"mercator-hq/keeper/pkg/stats"
	"mercator-hq/keeper/pkg/telemetry/logging"
	"mercator-hq/keeper/pkg/telemetry/metrics"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg       *config.Config
	store     *storage.SQLiteStorage
	tracker   *stats.Tracker
	lifecycle *lifecycle.Manager
	breaker   *resilience.CircuitBreaker
	cleanup   *cleanup.Manager
	quota     *quota.Manager

	// collector is nil unless the app was built for `keeper run`.
	collector *metrics.Collector
}

// loadConfig reads the configuration file with environment overrides.
// When the default file is absent the built-in defaults are used; an
// explicitly named file must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil && errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		slog.Debug("configuration file not found, using defaults", "path", cfgFile)
		cfg, err = config.LoadDefaultsWithEnvOverrides()
	}
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	return cfg, nil
}

// setupLogging installs the process logger. Logs go to stderr so that
// command output on stdout stays machine-readable.
func setupLogging(cmd *cobra.Command, cfg *config.Config) error {
	logCfg := logging.FromConfig(cfg.Telemetry.Logging)
	logCfg.Writer = cmd.ErrOrStderr()
	if verbose {
		logCfg.Level = "debug"
	}
	if _, err := logging.Setup(logCfg); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	return nil
}

// openApp loads configuration and opens storage. withMetrics attaches a
// Prometheus collector as observer of every component.
func openApp(cmd *cobra.Command, withMetrics bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cmd, cfg); err != nil {
		return nil, err
	}
	return newApp(cfg, withMetrics)
}

func newApp(cfg *config.Config, withMetrics bool) (*app, error) {
	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
		Path:        cfg.Storage.Path,
		Driver:      cfg.Storage.Driver,
		WALMode:     cfg.Storage.WALMode,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a := &app{
		cfg:   cfg,
		store: store,
		tracker: stats.NewTracker(store, stats.Config{
			CacheSize: cfg.Statistics.CacheSize,
			CacheTTL:  cfg.Statistics.CacheTTL,
		}),
		breaker: resilience.NewCircuitBreaker("filesystem",
			cfg.Resilience.FailureThreshold,
			cfg.Resilience.RecoveryTimeout,
		),
	}

	var events lifecycle.EventRecorder = a.tracker
	cleanupOpts := []cleanup.Option{
		cleanup.WithTransactionRecorder(resilience.NewTransactionRecorder(store)),
		cleanup.WithCircuitBreaker(a.breaker),
	}
	var quotaOpts []quota.Option

	if withMetrics {
		a.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
		events = a.collector.InstrumentEvents(a.tracker)
		a.tracker.SetAnomalyObserver(a.collector)
		cleanupOpts = append(cleanupOpts, cleanup.WithObserver(a.collector))
		quotaOpts = append(quotaOpts, quota.WithObserver(a.collector))
	}

	a.lifecycle = lifecycle.NewManager(store,
		lifecycle.WithEventRecorder(events),
		lifecycle.WithDedupTTL(cfg.Storage.DedupTTL),
	)
	a.cleanup = cleanup.NewManager(a.lifecycle, append(cleanupOpts, cleanup.WithEventRecorder(events))...)
	a.quota = quota.NewManager(a.lifecycle, cfg.Quota, append(quotaOpts, quota.WithEventRecorder(events))...)

	return a, nil
}

// newRunner wires a maintenance runner over the app's components. tracer
// may be nil.
func (a *app) newRunner(tracer maintenance.Tracer) *maintenance.Runner {
	runner := maintenance.NewRunner(maintenanceConfig(a.cfg))
	runner.Cleaner = a.cleanup
	runner.Quota = a.quota
	runner.Anomalies = a.tracker
	runner.Store = a.store
	runner.Status = a.lifecycle
	if a.collector != nil {
		runner.Gauge = a.collector
	}
	if tracer != nil {
		runner.Tracer = tracer
	}
	return runner
}

func maintenanceConfig(cfg *config.Config) maintenance.Config {
	return maintenance.Config{
		Policy:             cfg.Retention,
		RawDir:             cfg.Storage.RawDir,
		CategoriesDir:      cfg.Storage.CategoriesDir,
		EventRetentionDays: cfg.Statistics.EventRetentionDays,
	}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close storage", "error", err)
	}
}

// render writes table in text or CSV form, or raw as JSON.
func render(cmd *cobra.Command, table *cli.Table, raw any) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	var data any = table
	if format == cli.FormatJSON && raw != nil {
		data = raw
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}

// keyValueTable builds a two-column table from alternating keys and values.
func keyValueTable(pairs ...any) *cli.Table {
	table := &cli.Table{Headers: []string{"field", "value"}}
	for i := 0; i+1 < len(pairs); i += 2 {
		table.AddRow(pairs[i], pairs[i+1])
	}
	return table
}
