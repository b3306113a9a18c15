package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/keeper/pkg/cli"
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run one maintenance tick",
	Long: `Run a single maintenance tick: coordinated cleanup, quota enforcement,
duplicate cache expiry, event pruning, anomaly detection and a storage
checkpoint.

This is the same tick that "keeper run" executes on its cron schedule and
is suitable for an external scheduler.

Examples:
  keeper maintain
  keeper maintain --format json`,
	Args: cobra.NoArgs,
	RunE: runMaintain,
}

func init() {
	rootCmd.AddCommand(maintainCmd)
}

type tickView struct {
	StartedAt           string `json:"started_at"`
	DurationMS          int64  `json:"duration_ms"`
	FilesRemoved        int    `json:"files_removed"`
	SpaceFreed          int64  `json:"space_freed"`
	CleanupErrors       int    `json:"cleanup_errors"`
	QuotaEnforced       bool   `json:"quota_enforced"`
	FilesMarked         int    `json:"files_marked"`
	ExpiredCacheEntries int64  `json:"expired_cache_entries"`
	PrunedEvents        int64  `json:"pruned_events"`
	Anomalies           int    `json:"anomalies"`
	Error               string `json:"error,omitempty"`
}

func runMaintain(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	report := a.newRunner(nil).RunOnce(cmd.Context())

	view := tickView{
		StartedAt:           report.StartedAt.UTC().Format(timeLayout),
		DurationMS:          report.Duration.Milliseconds(),
		ExpiredCacheEntries: report.ExpiredCacheEntries,
		PrunedEvents:        report.PrunedEvents,
		Anomalies:           len(report.Anomalies),
	}
	if report.Cleanup != nil {
		view.FilesRemoved = report.Cleanup.TotalFilesRemoved()
		view.SpaceFreed = report.Cleanup.SpaceFreed
		view.CleanupErrors = len(report.Cleanup.Errors)
	}
	if report.Quota != nil {
		view.QuotaEnforced = report.Quota.Enforced
		view.FilesMarked = report.Quota.FilesMarked
	}
	if report.Err != nil {
		view.Error = report.Err.Error()
	}

	table := keyValueTable(
		"started_at", view.StartedAt,
		"duration_ms", view.DurationMS,
		"files_removed", view.FilesRemoved,
		"space_freed", view.SpaceFreed,
		"cleanup_errors", view.CleanupErrors,
		"quota_enforced", view.QuotaEnforced,
		"files_marked", view.FilesMarked,
		"expired_cache_entries", view.ExpiredCacheEntries,
		"pruned_events", view.PrunedEvents,
		"anomalies", view.Anomalies,
	)
	if err := render(cmd, table, view); err != nil {
		return err
	}

	if report.Err != nil {
		return cli.NewCommandError("maintain", fmt.Errorf("tick interrupted: %w", report.Err))
	}
	return nil
}
