package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"roastline-hq/roastline/pkg/cli"
	"roastline-hq/roastline/pkg/config"
	"roastline-hq/roastline/pkg/limits/storage"
	"roastline-hq/roastline/pkg/settings"
	"roastline-hq/roastline/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "roastline",
	Short: "Roastline - AI code roasts on a budget",
	Long: `Roastline serves AI code reviews ("roasts") behind an admission gate that
keeps API spend inside a monthly budget.

Each request passes, in order:
  - the enable_roasting kill switch
  - input size limits
  - the monthly budget
  - per-session, per-IP and global daily quotas

Budget, quotas and the kill switch live in the settings table and can be
changed at runtime with "roastline settings set" or the admin endpoint.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults plus ROASTLINE_* environment when empty)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json)")
}

// loadConfig loads the configuration for one-shot commands.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := cfg.Telemetry.Logging
	logCfg := logging.Config{
		Level:         lc.Level,
		Format:        lc.Format,
		AddSource:     lc.AddSource,
		RedactSecrets: cfg.RedactSecrets(),
		Writer:        os.Stderr,
	}
	if lc.File != "" {
		logCfg.File = &logging.FileConfig{
			Path:       lc.File,
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
			Compress:   true,
		}
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return logger, nil
}

// ensureDir creates the parent directory of a database file.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// openCounters opens the counter database and seeds missing settings.
func openCounters(cmd *cobra.Command, cfg *config.Config) (*storage.SQLiteBackend, *settings.Store, error) {
	if err := ensureDir(cfg.Storage.DBPath); err != nil {
		return nil, nil, err
	}
	backend, err := storage.NewSQLiteBackendWithConfig(storage.SQLiteBackendConfig{
		DBPath:      cfg.Storage.DBPath,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open counter store: %w", err)
	}

	store := settings.NewStore(backend)
	if err := store.Seed(cmd.Context()); err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("failed to seed settings: %w", err)
	}
	return backend, store, nil
}

func parseOutput() (cli.OutputFormat, error) {
	return cli.ParseOutputFormat(outputFormat)
}
