package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/keeper/pkg/cleanup"
	"mercator-hq/keeper/pkg/cli"
)

var cleanupFlags struct {
	dryRun        bool
	rawDir        string
	categoriesDir string
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired, failed, marked and orphaned files",
	Long: `Run a coordinated cleanup with the configured retention policy.

Cleanup runs three passes: orphaned files, the raw directory and the
categorized directory. Each pass is recorded in the transaction log.
Records are never deleted; removed files are marked for deletion.

With --dry-run nothing is removed. The command prints the records that
are eligible and an estimate of the space that would be freed.

Examples:
  keeper cleanup --dry-run
  keeper cleanup
  keeper cleanup --raw-dir /srv/raw --categories-dir /srv/categories`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().BoolVar(&cleanupFlags.dryRun, "dry-run", false, "show what would be removed without removing anything")
	cleanupCmd.Flags().StringVar(&cleanupFlags.rawDir, "raw-dir", "", "override storage.raw_dir")
	cleanupCmd.Flags().StringVar(&cleanupFlags.categoriesDir, "categories-dir", "", "override storage.categories_dir")
}

type cleanupPlanView struct {
	Impact     cleanup.Impact `json:"impact"`
	Candidates []recordView   `json:"candidates"`
}

type cleanupErrorView struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type cleanupResultView struct {
	RawFilesRemoved         int                `json:"raw_files_removed"`
	CategorizedFilesRemoved int                `json:"categorized_files_removed"`
	OrphanedFilesRemoved    int                `json:"orphaned_files_removed"`
	SpaceFreed              int64              `json:"space_freed"`
	DurationMS              int64              `json:"duration_ms"`
	TransactionIDs          []string           `json:"transaction_ids"`
	Errors                  []cleanupErrorView `json:"errors"`
}

func runCleanup(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	policy := a.cfg.Retention

	if cleanupFlags.dryRun {
		impact := a.cleanup.EstimateCleanupImpact(ctx, policy)
		candidates := a.cleanup.GetCleanupCandidates(ctx, policy)

		view := cleanupPlanView{Impact: impact, Candidates: make([]recordView, 0, len(candidates))}
		table := recordTable()
		for _, record := range candidates {
			view.Candidates = append(view.Candidates, newRecordView(record))
			addRecordRow(table, record)
		}

		if err := render(cmd, table, view); err != nil {
			return err
		}
		if format, _ := cli.ParseFormat(outputFormat); format == cli.FormatText {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d candidates, %d orphans, ~%d bytes, categories: %s\n",
				impact.CandidateFiles, impact.OrphanedFiles, impact.EstimatedSpaceFreed,
				strings.Join(impact.CategoriesAffected, ","))
		}
		return nil
	}

	rawDir := a.cfg.Storage.RawDir
	if cleanupFlags.rawDir != "" {
		rawDir = cleanupFlags.rawDir
	}
	categoriesDir := a.cfg.Storage.CategoriesDir
	if cleanupFlags.categoriesDir != "" {
		categoriesDir = cleanupFlags.categoriesDir
	}

	result := a.cleanup.PerformCoordinatedCleanup(ctx, policy, rawDir, categoriesDir)

	view := cleanupResultView{
		RawFilesRemoved:         result.RawFilesRemoved,
		CategorizedFilesRemoved: result.CategorizedFilesRemoved,
		OrphanedFilesRemoved:    result.OrphanedFilesRemoved,
		SpaceFreed:              result.SpaceFreed,
		DurationMS:              result.Duration.Milliseconds(),
		TransactionIDs:          result.TransactionIDs,
		Errors:                  make([]cleanupErrorView, 0, len(result.Errors)),
	}
	for _, e := range result.Errors {
		view.Errors = append(view.Errors, cleanupErrorView{Path: e.Path, Type: e.Type, Message: e.Message})
	}

	table := keyValueTable(
		"raw_files_removed", view.RawFilesRemoved,
		"categorized_files_removed", view.CategorizedFilesRemoved,
		"orphaned_files_removed", view.OrphanedFilesRemoved,
		"space_freed", view.SpaceFreed,
		"duration_ms", view.DurationMS,
		"errors", len(view.Errors),
	)
	if err := render(cmd, table, view); err != nil {
		return err
	}

	if len(result.Errors) > 0 {
		return cli.NewCommandError("cleanup", fmt.Errorf("%d files could not be removed (first: %s: %s)",
			len(result.Errors), result.Errors[0].Path, result.Errors[0].Message))
	}
	return nil
}
