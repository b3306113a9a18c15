package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/keeper/pkg/cli"
	"mercator-hq/keeper/pkg/lifecycle"
)

var recordsFlags struct {
	priority        int
	status          string
	category        string
	categorizedPath string
	reason          string
	accessType      string
	skipExisting    bool
	force           bool
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage lifecycle records",
	Long: `Create, inspect and transition lifecycle records.

Subcommands:
  create     - Register ingested files
  scan       - Register every file under a directory
  get        - Show a record by id or raw file path
  list       - List records, optionally by status
  status     - Transition a record to a new processing status
  access     - Record an access to a file
  priority   - Set a record's priority level
  duplicate  - Check whether a file's content was seen before
  orphans    - List files whose paired counterpart is missing`,
}

var recordsCreateCmd = &cobra.Command{
	Use:   "create <path>...",
	Short: "Register ingested files",
	Example: `  keeper records create data/raw/img_0001.jpg
  keeper records create --priority 1 data/raw/contract.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecordsCreate,
}

var recordsScanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Register every regular file under a directory",
	Long: `Walk a directory and create a lifecycle record for every regular file.

Files that already have a record are skipped unless --skip-existing=false.
Progress is reported on stderr in text mode.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordsScan,
}

var recordsGetCmd = &cobra.Command{
	Use:   "get <id|path>",
	Short: "Show a lifecycle record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsGet,
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lifecycle records",
	Args:  cobra.NoArgs,
	RunE:  runRecordsList,
}

var recordsStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Transition a record",
	Long: `Transition a record to a new processing status.

Valid statuses: pending, processing, completed, failed, marked_for_deletion.
Only forward transitions are accepted unless --force is given; any status
may move to marked_for_deletion.`,
	Example: `  keeper records status 6f1c... processing
  keeper records status 6f1c... completed --category receipts --categorized-path data/categories/receipts/img.jpg
  keeper records status 6f1c... failed --reason "unreadable image"`,
	Args: cobra.ExactArgs(2),
	RunE: runRecordsStatus,
}

var recordsAccessCmd = &cobra.Command{
	Use:   "access <id>",
	Short: "Record an access to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsAccess,
}

var recordsPriorityCmd = &cobra.Command{
	Use:   "priority <id> <level>",
	Short: "Set a record's priority level",
	Long: `Set a record's priority level. Records with a level above zero are
excluded from quota enforcement and get the extended priority retention.`,
	Args: cobra.ExactArgs(2),
	RunE: runRecordsPriority,
}

var recordsDuplicateCmd = &cobra.Command{
	Use:   "duplicate <path>",
	Short: "Check a file against the duplicate cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsDuplicate,
}

var recordsOrphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List orphaned files",
	Args:  cobra.NoArgs,
	RunE:  runRecordsOrphans,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(
		recordsCreateCmd,
		recordsScanCmd,
		recordsGetCmd,
		recordsListCmd,
		recordsStatusCmd,
		recordsAccessCmd,
		recordsPriorityCmd,
		recordsDuplicateCmd,
		recordsOrphansCmd,
	)

	recordsCreateCmd.Flags().IntVar(&recordsFlags.priority, "priority", 0, "priority level (> 0 protects from reclamation)")
	recordsScanCmd.Flags().IntVar(&recordsFlags.priority, "priority", 0, "priority level for every created record")
	recordsScanCmd.Flags().BoolVar(&recordsFlags.skipExisting, "skip-existing", true, "skip files that already have a record")
	recordsListCmd.Flags().StringVar(&recordsFlags.status, "status", "", "only list records with this status")
	recordsStatusCmd.Flags().StringVar(&recordsFlags.category, "category", "", "category label")
	recordsStatusCmd.Flags().StringVar(&recordsFlags.categorizedPath, "categorized-path", "", "path of the categorized copy")
	recordsStatusCmd.Flags().StringVar(&recordsFlags.reason, "reason", "", "failure reason")
	recordsStatusCmd.Flags().BoolVar(&recordsFlags.force, "force", false, "apply an out-of-order transition")
	recordsAccessCmd.Flags().StringVar(&recordsFlags.accessType, "type", string(lifecycle.AccessRead), "access type: read, send, process")
}

func runRecordsCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	table := &cli.Table{Headers: []string{"id", "path"}}
	created := make([]map[string]string, 0, len(args))
	var failed []string

	for _, path := range args {
		id := a.lifecycle.CreateLifecycleRecord(ctx, path, &lifecycle.CreateOptions{PriorityLevel: recordsFlags.priority})
		if id == "" {
			failed = append(failed, path)
			continue
		}
		table.AddRow(id, path)
		created = append(created, map[string]string{"id": id, "path": path})
	}

	if err := render(cmd, table, created); err != nil {
		return err
	}
	if len(failed) > 0 {
		return cli.NewCommandError("records create", fmt.Errorf("failed to create %d records: %v", len(failed), failed))
	}
	return nil
}

func runRecordsScan(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	root := args[0]

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return cli.NewCommandError("records scan", fmt.Errorf("failed to walk %s: %w", root, err))
	}
	sort.Strings(paths)

	var progress cli.ProgressReporter = cli.NoopProgress{}
	if format, _ := cli.ParseFormat(outputFormat); format == cli.FormatText {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "files")
	}

	created, skipped, failed := 0, 0, 0
	progress.Start(int64(len(paths)))
	for i, path := range paths {
		if ctx.Err() != nil {
			progress.Error(ctx.Err())
			return cli.NewCommandError("records scan", ctx.Err())
		}
		if recordsFlags.skipExisting {
			if _, found := a.lifecycle.GetRecordByFilePath(ctx, path); found {
				skipped++
				progress.Update(int64(i + 1))
				continue
			}
		}
		if a.lifecycle.CreateLifecycleRecord(ctx, path, &lifecycle.CreateOptions{PriorityLevel: recordsFlags.priority}) == "" {
			failed++
		} else {
			created++
		}
		progress.Update(int64(i + 1))
	}
	progress.Finish()

	summary := map[string]int{"files": len(paths), "created": created, "skipped": skipped, "failed": failed}
	table := keyValueTable("files", len(paths), "created", created, "skipped", skipped, "failed", failed)
	if err := render(cmd, table, summary); err != nil {
		return err
	}
	if failed > 0 {
		return cli.NewCommandError("records scan", fmt.Errorf("failed to create %d records", failed))
	}
	return nil
}

// findRecord resolves a record id, falling back to a raw or categorized
// file path.
func findRecord(cmd *cobra.Command, a *app, ref string) (*lifecycle.LifecycleRecord, error) {
	ctx := cmd.Context()
	if record, found := a.lifecycle.GetLifecycleInfo(ctx, ref); found {
		return record, nil
	}
	if record, found := a.lifecycle.GetRecordByFilePath(ctx, ref); found {
		return record, nil
	}
	return nil, fmt.Errorf("%w: %s", lifecycle.ErrRecordNotFound, ref)
}

func runRecordsGet(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	record, err := findRecord(cmd, a, args[0])
	if err != nil {
		return cli.NewCommandError("records get", err)
	}

	v := newRecordView(record)
	table := keyValueTable(
		"id", v.ID,
		"status", v.Status,
		"raw_file_path", v.RawFilePath,
		"categorized_file_path", v.CategorizedFilePath,
		"category", v.Category,
		"failure_reason", v.FailureReason,
		"created_at", v.CreatedAt,
		"file_size", v.FileSize,
		"access_count", v.AccessCount,
		"priority_level", v.PriorityLevel,
		"md5_hash", v.MD5Hash,
		"sha256_hash", v.SHA256Hash,
	)
	return render(cmd, table, v)
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var records []*lifecycle.LifecycleRecord
	if recordsFlags.status != "" {
		status := lifecycle.ProcessingStatus(recordsFlags.status)
		if !status.Valid() {
			return cli.NewConfigError("status", fmt.Sprintf("unknown status %q", recordsFlags.status))
		}
		records = a.lifecycle.GetFilesByStatus(ctx, status)
	} else {
		records = a.store.GetAllRecords(ctx)
	}

	table := recordTable()
	views := make([]recordView, 0, len(records))
	for _, record := range records {
		addRecordRow(table, record)
		views = append(views, newRecordView(record))
	}
	return render(cmd, table, views)
}

func runRecordsStatus(cmd *cobra.Command, args []string) error {
	status := lifecycle.ProcessingStatus(args[1])
	if !status.Valid() {
		return cli.NewConfigError("status", fmt.Sprintf("unknown status %q", args[1]))
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	record, err := findRecord(cmd, a, args[0])
	if err != nil {
		return cli.NewCommandError("records status", err)
	}

	if !recordsFlags.force && !lifecycle.ValidTransition(record.Status, status) {
		return cli.NewCommandError("records status",
			fmt.Errorf("transition %s -> %s is out of order (use --force to apply it)", record.Status, status))
	}

	update := &lifecycle.StatusUpdate{
		Category:            recordsFlags.category,
		CategorizedFilePath: recordsFlags.categorizedPath,
		FailureReason:       recordsFlags.reason,
	}
	if !a.lifecycle.UpdateProcessingStatus(cmd.Context(), record.ID, status, update) {
		return cli.NewCommandError("records status",
			fmt.Errorf("failed to update status of %s", record.ID))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", record.ID, record.Status, status)
	return nil
}

func runRecordsAccess(cmd *cobra.Command, args []string) error {
	accessType := lifecycle.AccessType(recordsFlags.accessType)
	switch accessType {
	case lifecycle.AccessRead, lifecycle.AccessSend, lifecycle.AccessProcess:
	default:
		return cli.NewConfigError("type", fmt.Sprintf("unknown access type %q", recordsFlags.accessType))
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	record, err := findRecord(cmd, a, args[0])
	if err != nil {
		return cli.NewCommandError("records access", err)
	}
	if !a.lifecycle.UpdateAccessInfo(ctx, record.ID) {
		return cli.NewCommandError("records access", fmt.Errorf("failed to update access info for %s", record.ID))
	}
	a.tracker.RecordAccessEvent(ctx, record.RawFilePath, accessType)

	fmt.Fprintf(cmd.OutOrStdout(), "%s: access_count %d\n", record.ID, record.AccessCount+1)
	return nil
}

func runRecordsPriority(cmd *cobra.Command, args []string) error {
	level, err := strconv.Atoi(args[1])
	if err != nil || level < 0 {
		return cli.NewConfigError("level", fmt.Sprintf("priority level must be a non-negative integer, got %q", args[1]))
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	record, err := findRecord(cmd, a, args[0])
	if err != nil {
		return cli.NewCommandError("records priority", err)
	}
	if !a.lifecycle.SetPriorityLevel(cmd.Context(), record.ID, level) {
		return cli.NewCommandError("records priority", fmt.Errorf("failed to set priority for %s", record.ID))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: priority %d -> %d\n", record.ID, record.PriorityLevel, level)
	return nil
}

func runRecordsDuplicate(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(args[0]); err != nil {
		return cli.NewCommandError("records duplicate", err)
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	entry, found := a.lifecycle.CheckDuplicate(cmd.Context(), args[0])
	if !found {
		table := keyValueTable("duplicate", false)
		return render(cmd, table, map[string]bool{"duplicate": false})
	}

	table := keyValueTable(
		"duplicate", true,
		"md5_hash", entry.MD5Hash,
		"sha256_hash", entry.SHA256Hash,
		"file_size", entry.FileSize,
		"first_seen", entry.FirstSeen.UTC().Format(timeLayout),
		"reference_count", entry.ReferenceCount,
	)
	return render(cmd, table, map[string]any{"duplicate": true, "entry": entry})
}

func runRecordsOrphans(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	orphans := a.lifecycle.FindOrphanedFiles(cmd.Context())
	if orphans == nil {
		orphans = []lifecycle.OrphanedFile{}
	}

	table := &cli.Table{Headers: []string{"record_id", "type", "size", "reason", "path"}}
	for _, o := range orphans {
		table.AddRow(o.RecordID, o.FileType, o.Size, o.Reason, o.FilePath)
	}
	return render(cmd, table, orphans)
}
