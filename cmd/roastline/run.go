package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"roastline-hq/roastline/pkg/cli"
	"roastline-hq/roastline/pkg/config"
	"roastline-hq/roastline/pkg/identity"
	"roastline-hq/roastline/pkg/limits"
	"roastline-hq/roastline/pkg/limits/budget"
	"roastline-hq/roastline/pkg/limits/ratelimit"
	"roastline-hq/roastline/pkg/providers/anthropic"
	"roastline-hq/roastline/pkg/providers/mock"
	"roastline-hq/roastline/pkg/retention"
	"roastline-hq/roastline/pkg/roastlog"
	"roastline-hq/roastline/pkg/server"
	"roastline-hq/roastline/pkg/telemetry/health"
	"roastline-hq/roastline/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Roastline server",
	Long: `Start the Roastline HTTP server with the specified configuration.

Without ANTHROPIC_API_KEY the server uses a canned mock reviewer that costs
nothing, which is useful for local development.

Examples:
  # Start with defaults and environment overrides
  roastline run

  # Start with a config file (reloaded on change)
  roastline run --config /etc/roastline/config.yaml

  # Override listen address
  roastline run --listen 127.0.0.1:9000

  # Validate config without starting server
  roastline run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("config", err.Error())
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("flags", err.Error())
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	logger.SetDefault()

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	generated, err := config.EnsureSecretKey(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	if generated {
		slog.Warn("no SECRET_KEY set; generated a random one, sessions will not survive a restart")
	}
	if cfg.Security.AdminPassword == config.DefaultAdminPassword {
		slog.Warn("admin password is the default; set ADMIN_PASSWORD")
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	counters, store, err := openCounters(cmd, cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer counters.Close()

	if err := ensureDir(cfg.Storage.RoastsDBPath); err != nil {
		return cli.NewCommandError("run", err)
	}
	roasts, err := roastlog.Open(roastlog.Config{
		Path:        cfg.Storage.RoastsDBPath,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to open roast log: %w", err))
	}
	defer roasts.Close()

	collector := metrics.NewCollector(metrics.Config{ProcessMetrics: cfg.Telemetry.Metrics.ProcessMetrics})

	reviewer, err := newReviewer(cfg)
	if err != nil {
		return cli.NewConfigError("reviewer", err.Error())
	}

	ledger := budget.NewLedger(counters, store)
	limiter := ratelimit.NewLimiter(counters, store)
	gate := limits.NewGate(limits.Config{
		Settings: store,
		Budget:   ledger,
		Limiter:  limiter,
		Reviewer: reviewer,
		Roasts:   roasts,
		Observer: collector,

		WriteTimeout: 2 * cfg.Storage.BusyTimeout,
	})

	checker := health.New(0)
	checker.RegisterCheck("counters", counters.Ping)
	checker.RegisterCheck("roast_log", roasts.Ping)
	checker.SetRoastingProbe(gate.RoastingEnabled)

	pruner := retention.NewPruner(limiter, &retention.Config{
		KeepDays: cfg.Retention.KeepDays,
		Schedule: cfg.Retention.Schedule,
	})
	pruner.SetObserver(collector)
	if cfg.PruneOnStartup() {
		if result := pruner.RunOnce(ctx); !result.OK() {
			slog.Warn("startup prune failed", "error", result.Err)
		}
	}
	if err := pruner.Start(ctx); err != nil {
		slog.Warn("failed to start retention scheduler", "error", err)
	} else {
		defer pruner.Stop()
		if next := pruner.NextPruning(); next != nil {
			slog.Debug("retention scheduler started", "next_pruning", next)
		}
	}

	srv := server.New(cfg, server.Deps{
		Gate:     gate,
		Roasts:   roasts,
		Budget:   ledger,
		Settings: store,
		Resolver: identity.NewResolver(cfg.Security.TrustedProxyCount),
		Sessions: identity.NewSessions(cfg.Security.SecretKey, cfg.Security.SecureCookies),
		Health:   checker,
		Metrics:  collector,
		Build:    server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
	})

	if cfgFile != "" {
		watcher, err := config.NewWatcher(cfgFile, 0, func(next *config.Config) {
			if err := logger.SetLevel(next.Telemetry.Logging.Level); err != nil {
				slog.Warn("ignoring reloaded log level", "error", err)
			}
			srv.SetAdminPassword(next.Security.AdminPassword)
			pruner.SetKeepDays(next.Retention.KeepDays)
			slog.Info("configuration reloaded",
				"log_level", next.Telemetry.Logging.Level,
				"keep_days", next.Retention.KeepDays,
			)
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "error", err)
		} else {
			go func() {
				if err := watcher.Run(ctx); err != nil {
					slog.Error("config watcher stopped", "error", err)
				}
			}()
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Roastline v%s\n", Version)
	fmt.Fprintf(out, "✓ Counter store: %s\n", counters.Path())
	fmt.Fprintf(out, "✓ Roast log: %s\n", roasts.Path())
	fmt.Fprintf(out, "✓ Listening on %s (Ctrl+C to stop)\n", cfg.Server.ListenAddress)

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// newReviewer picks the Anthropic reviewer when an API key is configured
// and the mock otherwise.
func newReviewer(cfg *config.Config) (limits.Reviewer, error) {
	if cfg.Reviewer.APIKey == "" {
		slog.Warn("ANTHROPIC_API_KEY not set; using the mock reviewer")
		return mock.NewReviewer(), nil
	}
	reviewer, err := anthropic.NewReviewer(anthropic.Config{
		APIKey:      cfg.Reviewer.APIKey,
		BaseURL:     cfg.Reviewer.BaseURL,
		Timeout:     cfg.Reviewer.Timeout,
		MaxAttempts: cfg.Reviewer.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	return reviewer, nil
}
