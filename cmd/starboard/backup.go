package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthside/starboard/internal/config"
	"github.com/hearthside/starboard/internal/family"
)

var (
	backupConfigOverride string
	backupDirOverride    string
	backupJSONOutput     bool
	watchInterval        time.Duration
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage family config backups",
	Long:  "Create, list, and restore timestamped backups of the family configuration without running the server.",
}

func init() {
	backupCmd.PersistentFlags().StringVar(&backupConfigOverride, "config", "",
		"Family config path (overrides server config)")
	backupCmd.PersistentFlags().StringVar(&backupDirOverride, "dir", "",
		"Backup directory (overrides server config)")
	backupCmd.PersistentFlags().BoolVar(&backupJSONOutput, "json", false,
		"Output in JSON format")

	backupWatchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second,
		"Poll interval for config changes")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupWatchCmd)
}

// resolveBackups builds a Backups handle from flags, falling back to the
// server configuration for anything not overridden.
func resolveBackups() (*family.Backups, error) {
	configPath, dir := backupConfigOverride, backupDirOverride
	if configPath == "" || dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if configPath == "" {
			configPath = cfg.Family.ConfigPath
		}
		if dir == "" {
			dir = cfg.Family.BackupDir
		}
	}
	return family.NewBackups(configPath, dir), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Back up the family config now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backups, err := resolveBackups()
		if err != nil {
			return err
		}

		entry, err := backups.Backup()
		if err != nil {
			return err
		}

		if backupJSONOutput {
			return printJSON(cmd.OutOrStdout(), entry)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backed up to %s (%d bytes)\n", entry.Filename, entry.Size)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available backups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backups, err := resolveBackups()
		if err != nil {
			return err
		}

		entries, err := backups.List()
		if err != nil {
			return err
		}

		if backupJSONOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"backups": entries,
				"total":   len(entries),
			})
		}

		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No backups found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tTIMESTAMP\tFILE\tSIZE\tHASH")
		for i, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", i+1, e.Timestamp, e.Filename, e.Size, e.Hash)
		}
		return w.Flush()
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <number>",
	Short: "Restore a backup by its list number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid backup number %q", args[0])
		}

		backups, err := resolveBackups()
		if err != nil {
			return err
		}

		entry, err := backups.Restore(n)
		if err != nil {
			return err
		}

		if backupJSONOutput {
			return printJSON(cmd.OutOrStdout(), entry)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s (from %s)\n", entry.Filename, entry.Timestamp)
		return nil
	},
}

var backupWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Back up the family config whenever it changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backups, err := resolveBackups()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(),
			syscall.SIGTERM, syscall.SIGINT)
		defer cancel()

		fmt.Fprintf(cmd.OutOrStdout(), "Watching for changes (every %s). Ctrl-C to stop.\n", watchInterval)
		if err := backups.Watch(ctx, watchInterval); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}
