/*
Package cli provides command-line helpers for the keeper binary.

Output Formatting:

Commands accept --format text|json|csv. Tabular results are built as a
*Table so every format can render them:

	format, err := cli.ParseFormat(flagValue)
	if err != nil {
		return err
	}
	table := &cli.Table{Headers: []string{"id", "status"}}
	table.AddRow(record.ID, record.Status)
	return cli.NewFormatter(format).FormatTo(os.Stdout, table)

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr, "files")
	progress.Start(int64(len(paths)))
	for i, path := range paths {
		register(path)
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Errors:

ConfigError marks configuration and flag problems, which ExitCode maps to
exit status 2. Everything else exits with status 1.
*/
package cli
