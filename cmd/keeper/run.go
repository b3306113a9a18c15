package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/keeper/pkg/cli"
	"mercator-hq/keeper/pkg/config"
	"mercator-hq/keeper/pkg/maintenance"
	"mercator-hq/keeper/pkg/server"
	"mercator-hq/keeper/pkg/telemetry/health"
	"mercator-hq/keeper/pkg/telemetry/tracing"
)

const shutdownTimeout = 10 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run keeper with scheduled maintenance",
	Long: `Run keeper in the foreground.

The process serves Prometheus metrics and health endpoints, runs the
maintenance tick on the configured cron schedule and reloads the
configuration file when it changes.

Endpoints:
  /metrics  Prometheus metrics (path configurable)
  /health   liveness
  /ready    readiness (storage, directories, filesystem circuit breaker)
  /version  build information

Examples:
  # Start with default config
  keeper run

  # Start with custom config
  keeper run --config /etc/keeper/keeper.yaml

  # Override listen address
  keeper run --listen 0.0.0.0:9090

  # Validate config without starting
  keeper run --dry-run`,
	Args: cobra.NoArgs,
	RunE: runKeeper,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override metrics and health listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not reload the config file on change")
}

// loadRunConfig initializes the global configuration. It reports whether
// the configuration came from a file that can be watched.
func loadRunConfig(cmd *cobra.Command) (*config.Config, bool, error) {
	if _, err := os.Stat(cfgFile); err == nil {
		if err := config.Initialize(cfgFile); err != nil {
			return nil, false, cli.NewConfigError("config", err.Error())
		}
		return config.GetConfig(), true, nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, false, err
	}
	config.SetConfig(cfg)
	return cfg, false, nil
}

func runKeeper(cmd *cobra.Command, args []string) error {
	cfg, fromFile, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Telemetry.Metrics.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := setupLogging(cmd, cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "Configuration valid")
		return nil
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.Close()

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	if err := a.collector.RegisterCircuitBreaker(a.breaker.Name(), a.breaker); err != nil {
		slog.Warn("failed to register circuit breaker metric", "error", err)
	}
	a.collector.SetRecordsByStatus(a.lifecycle.GetStatistics(cmd.Context()).ByStatus)

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	runner := a.newRunner(tracer)

	if cfg.Maintenance.Enabled {
		scheduler := maintenance.NewScheduler(runner, cfg.Maintenance.Schedule)
		if err := scheduler.Start(ctx); err != nil {
			return cli.NewCommandError("run", err)
		}
		defer scheduler.Stop()
		if next := scheduler.NextRun(); next != nil {
			slog.Info("maintenance scheduled", "schedule", cfg.Maintenance.Schedule, "next_run", next)
		}
	}

	if fromFile && !runFlags.noWatch {
		watcher, err := config.NewWatcher(cfgFile, a.store, func(updated *config.Config, changes []config.Change) {
			runner.SetConfig(maintenanceConfig(updated))
			if err := a.quota.Configure(updated.Quota); err != nil {
				slog.Warn("reloaded quota configuration rejected", "error", err)
			}
			slog.Info("configuration reloaded", "changes", len(changes))
		})
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	srv := server.New(server.Config{
		Address:         cfg.Telemetry.Metrics.ListenAddress,
		ShutdownTimeout: shutdownTimeout,
	}, newMux(a))

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(ctx) }()

	select {
	case err := <-errChan:
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		return nil
	case <-srv.Ready():
	}
	printBanner(cmd, cfg)

	if err := <-errChan; err != nil {
		slog.Error("shutdown failed", "error", err)
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "Stopped")
	return nil
}

// newMux serves metrics and the health endpoints.
func newMux(a *app) *http.ServeMux {
	cfg := a.cfg

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("storage", health.StorageCheck(a.store))
	checker.RegisterCheck("raw_dir", health.DirectoryCheck(cfg.Storage.RawDir, true))
	checker.RegisterCheck("categories_dir", health.DirectoryCheck(cfg.Storage.CategoriesDir, true))
	checker.RegisterCheck("filesystem_breaker", health.CircuitBreakerCheck(a.breaker))

	mux := http.NewServeMux()
	if cfg.Telemetry.Metrics.Enabled {
		mux.Handle(cfg.Telemetry.Metrics.Path, a.collector.Handler())
	}
	health.Register(mux, checker, Version, GitCommit, BuildDate)
	return mux
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Keeper v%s\n", Version)
	fmt.Fprintf(out, "Storage: %s (%s)\n", cfg.Storage.Path, cfg.Storage.Driver)
	if cfg.Maintenance.Enabled {
		fmt.Fprintf(out, "Maintenance schedule: %s\n", cfg.Maintenance.Schedule)
	}
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "Metrics: http://%s%s\n", cfg.Telemetry.Metrics.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintf(out, "Health: http://%s/health\n", cfg.Telemetry.Metrics.ListenAddress)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}
