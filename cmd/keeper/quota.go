package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/keeper/pkg/quota"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and enforce storage quotas",
	Long: `Inspect and enforce the count and size quotas.

Subcommands:
  status   - Show current usage, thresholds and warnings
  enforce  - Mark the lowest-value records for deletion when usage is critical

Enforcement only marks records. Files are removed by the next cleanup.`,
}

var quotaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show quota usage",
	Args:  cobra.NoArgs,
	RunE:  runQuotaStatus,
}

var quotaEnforceCmd = &cobra.Command{
	Use:   "enforce",
	Short: "Enforce quota limits",
	Args:  cobra.NoArgs,
	RunE:  runQuotaEnforce,
}

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.AddCommand(quotaStatusCmd)
	quotaCmd.AddCommand(quotaEnforceCmd)
}

type quotaStatusView struct {
	Status   quota.Status    `json:"status"`
	Warnings []quota.Warning `json:"warnings"`
}

func runQuotaStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	status := a.quota.CheckQuotaStatus(ctx)
	warnings := a.quota.GetQuotaWarnings(ctx)
	if warnings == nil {
		warnings = []quota.Warning{}
	}

	table := keyValueTable(
		"strategy", status.Strategy,
		"count", formatUsage(int64(status.CurrentCount), int64(status.MaxCount)),
		"size", formatUsage(status.CurrentSize, status.MaxSize),
		"usage", formatPercent(status.UsagePercentage),
		"warning_threshold", formatPercent(status.WarningThreshold),
		"critical_threshold", formatPercent(status.CriticalThreshold),
		"warning", status.IsWarning,
		"critical", status.IsCritical,
	)
	for _, w := range warnings {
		table.AddRow("warning."+w.Type, w.Message)
	}

	return render(cmd, table, quotaStatusView{Status: status, Warnings: warnings})
}

func runQuotaEnforce(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.quota.EnforceQuotaLimits(cmd.Context())

	table := keyValueTable(
		"enforced", result.Enforced,
		"usage_before", formatPercent(result.UsageBefore),
		"target_files", result.TargetFiles,
		"target_bytes", result.TargetBytes,
		"files_marked", result.FilesMarked,
		"space_freed", result.SpaceFreed,
		"errors", len(result.Errors),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return render(cmd, table, result)
}
