package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"roastline-hq/roastline/pkg/cli"
	"roastline-hq/roastline/pkg/limits/ratelimit"
)

var pruneFlags struct {
	keepDays int
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old daily usage counters",
	Long: `Delete per-session, per-IP and global usage rows older than the retention
window. Monthly spend and the roast log are never pruned.

The running server does this on its retention schedule; this command is for
one-off cleanups.`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().IntVar(&pruneFlags.keepDays, "keep-days", 0, "days of usage to keep (default: retention.keep_days from config)")
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	keepDays := cfg.Retention.KeepDays
	if cmd.Flags().Changed("keep-days") {
		if pruneFlags.keepDays < 1 {
			return cli.NewConfigError("keep-days", "must be at least 1")
		}
		keepDays = pruneFlags.keepDays
	}

	counters, store, err := openCounters(cmd, cfg)
	if err != nil {
		return cli.NewCommandError("prune", err)
	}
	defer counters.Close()

	result := ratelimit.NewLimiter(counters, store).PruneOldUsage(cmd.Context(), keepDays)
	if !result.OK() {
		return cli.NewCommandError("prune", result.Err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s usage rows before %s (kept %d days, took %s)\n",
		humanize.Comma(result.RowsDeleted), result.Cutoff, result.KeepDays, result.Duration.Round(time.Millisecond))
	return nil
}
