package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/keeper/pkg/cli"
)

var configFlags struct {
	limit int
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate, show and audit configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(cmd); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid: %s\n", cfgFile)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the effective configuration as YAML: the file decoded over the
defaults, with KEEPER_* environment overrides applied.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return cli.NewCommandError("config show", err)
		}
		return enc.Close()
	},
}

var configHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded configuration changes",
	Long: `Show configuration changes recorded by "keeper run" when it reloads
the configuration file, newest first.`,
	Args: cobra.NoArgs,
	RunE: runConfigHistory,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd, configShowCmd, configHistoryCmd)

	configHistoryCmd.Flags().IntVar(&configFlags.limit, "limit", 50, "maximum number of changes to show")
}

type configChangeView struct {
	Timestamp string `json:"timestamp"`
	Key       string `json:"key"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	ChangedBy string `json:"changed_by"`
	Reason    string `json:"reason,omitempty"`
}

func runConfigHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	changes := a.store.GetConfigHistory(cmd.Context(), configFlags.limit)

	table := &cli.Table{Headers: []string{"timestamp", "key", "old", "new", "changed_by"}}
	views := make([]configChangeView, 0, len(changes))
	for _, c := range changes {
		ts := c.Timestamp.UTC().Format(timeLayout)
		table.AddRow(ts, c.Key, c.OldValue, c.NewValue, c.ChangedBy)
		views = append(views, configChangeView{
			Timestamp: ts,
			Key:       c.Key,
			OldValue:  c.OldValue,
			NewValue:  c.NewValue,
			ChangedBy: c.ChangedBy,
			Reason:    c.Reason,
		})
	}
	return render(cmd, table, views)
}
