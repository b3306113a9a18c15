package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/keeper/pkg/cli"
	"mercator-hq/keeper/pkg/lifecycle"
	"mercator-hq/keeper/pkg/stats"
)

var statsFlags struct {
	period string
	since  string
	until  string
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report statistics and anomalies",
	Long: `Report statistics derived from the event log.

Subcommands:
  summary    - Record counts and sizes by status and category
  metrics    - Storage and performance metrics for the last 24 hours
  anomalies  - Detect rapid growth, high failure rates and access spikes
  aggregate  - Bucketed event aggregates for a period`,
}

var statsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show record counts by status and category",
	Args:  cobra.NoArgs,
	RunE:  runStatsSummary,
}

var statsMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show storage and performance metrics",
	Args:  cobra.NoArgs,
	RunE:  runStatsMetrics,
}

var statsAnomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Detect anomalies",
	Args:  cobra.NoArgs,
	RunE:  runStatsAnomalies,
}

var statsAggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate events by period",
	Long: `Aggregate events into hourly, daily, weekly or monthly buckets.

Without --since the window ends now and spans one period length.
Times use RFC3339.`,
	Example: `  keeper stats aggregate --period hourly
  keeper stats aggregate --period daily --since 2025-03-01T00:00:00Z --until 2025-03-08T00:00:00Z`,
	Args: cobra.NoArgs,
	RunE: runStatsAggregate,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.AddCommand(statsSummaryCmd, statsMetricsCmd, statsAnomaliesCmd, statsAggregateCmd)

	statsAggregateCmd.Flags().StringVar(&statsFlags.period, "period", string(lifecycle.PeriodDaily), "bucket width: hourly, daily, weekly, monthly")
	statsAggregateCmd.Flags().StringVar(&statsFlags.since, "since", "", "window start (RFC3339)")
	statsAggregateCmd.Flags().StringVar(&statsFlags.until, "until", "", "window end (RFC3339)")
}

func runStatsSummary(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	summary := a.lifecycle.GetStatistics(cmd.Context())

	table := keyValueTable(
		"total_records", summary.TotalRecords,
		"total_size", summary.TotalSize,
		"active_records", summary.ActiveRecords,
		"active_size", summary.ActiveSize,
	)
	for _, status := range sortedKeys(summary.ByStatus) {
		table.AddRow("status."+string(status), summary.ByStatus[status])
	}
	for _, category := range sortedKeys(summary.ByCategory) {
		table.AddRow("category."+category, summary.ByCategory[category])
	}
	return render(cmd, table, summary)
}

func runStatsMetrics(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	m := a.tracker.GetStorageMetrics(cmd.Context())

	table := keyValueTable(
		"images_stored", m.TotalImagesStored,
		"successful_classifications", m.SuccessfulClassifications,
		"failed_classifications", m.FailedClassifications,
		"success_rate", formatPercent(m.Performance.SuccessRate),
		"failure_rate", formatPercent(m.Performance.FailureRate),
		"avg_processing_time_s", fmt.Sprintf("%.3f", m.Performance.AverageProcessingTime),
		"throughput_per_hour", fmt.Sprintf("%.2f", m.Performance.ThroughputPerHour),
	)
	for _, category := range sortedKeys(m.ImagesPerCategory) {
		table.AddRow("category."+category, m.ImagesPerCategory[category])
	}
	return render(cmd, table, m)
}

func runStatsAnomalies(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	anomalies := a.tracker.DetectAnomalies(cmd.Context())
	if anomalies == nil {
		anomalies = []stats.Anomaly{}
	}

	table := &cli.Table{Headers: []string{"type", "severity", "value", "description", "action"}}
	for _, an := range anomalies {
		table.AddRow(an.Type, an.Severity, fmt.Sprintf("%.2f", an.Value), an.Description, an.RecommendedAction)
	}
	return render(cmd, table, anomalies)
}

func runStatsAggregate(cmd *cobra.Command, args []string) error {
	period := lifecycle.TimePeriod(statsFlags.period)
	switch period {
	case lifecycle.PeriodHourly, lifecycle.PeriodDaily, lifecycle.PeriodWeekly, lifecycle.PeriodMonthly:
	default:
		return cli.NewConfigError("period", fmt.Sprintf("unknown period %q", statsFlags.period))
	}

	start, err := parseOptionalTime("since", statsFlags.since)
	if err != nil {
		return err
	}
	end, err := parseOptionalTime("until", statsFlags.until)
	if err != nil {
		return err
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	agg := a.tracker.GetAggregatedStats(cmd.Context(), period, start, end)

	table := &cli.Table{Headers: []string{"bucket", "event_type", "category", "count", "avg", "sum"}}
	for _, row := range agg.Rows {
		table.AddRow(row.Bucket, row.EventType, row.Category, row.Count,
			fmt.Sprintf("%.3f", row.Avg), fmt.Sprintf("%.3f", row.Sum))
	}
	return render(cmd, table, agg)
}

func parseOptionalTime(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, cli.NewConfigError(flag, fmt.Sprintf("invalid RFC3339 time %q", value))
	}
	return &t, nil
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
