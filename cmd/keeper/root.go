package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/keeper/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "keeper",
	Short: "Keeper - file lifecycle, cleanup and quota manager",
	Long: `Keeper tracks every ingested file from raw storage through
categorization to deletion.

It provides:
  - Lifecycle records with content hashes and duplicate detection
  - Coordinated cleanup of raw, categorized and orphaned files
  - Count and size quotas with priority-aware enforcement
  - Event statistics, aggregation and anomaly detection
  - Prometheus metrics, health endpoints and scheduled maintenance`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a status derived from the
// returned error.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "keeper.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "o", "text", "output format: text, json, csv")
}
