package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"vitacheck/engine/pkg/analysis"
	"vitacheck/engine/pkg/config"
	"vitacheck/engine/pkg/fetch"
	"vitacheck/engine/pkg/providers"
	"vitacheck/engine/pkg/server"
	"vitacheck/engine/pkg/store"
	"vitacheck/engine/pkg/telemetry"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the analysis server",
	Long: `Start the analysis server with the specified configuration.

Examples:
  # Start with defaults (SQLite cache under ./data)
  vitacheck run

  # Start with a custom config
  vitacheck run --config /etc/vitacheck/config.yaml

  # Override the listen address
  vitacheck run --listen 0.0.0.0:9090

  # Validate the configuration without starting
  vitacheck run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	telemetry.SetupLogging(telemetry.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cache, err := openCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()

	usage, err := openUsageLog(cfg)
	if err != nil {
		return fmt.Errorf("open usage log: %w", err)
	}
	defer usage.Close()

	metrics := telemetry.NewMetrics()
	registry := providers.NewRegistry(registryConfig(cfg))

	pipeline := analysis.NewPipeline(
		bundleProviders(registry),
		cache,
		usage,
		metrics,
		analysis.Config{
			UpstreamLimit: cfg.Limits.Upstream,
			PairLimit:     cfg.Limits.Pair,
		},
	)

	sweeper := store.NewSweeper(cache, store.SweeperConfig{
		Schedule:    cfg.Retention.SweepSchedule,
		CalcVersion: analysis.CalcVersion,
		Metrics:     metrics,
	})
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start retention sweeper: %w", err)
	}
	defer sweeper.Stop()

	// Config hot reload covers logging and provider tunables (timeouts,
	// blocklist); storage and listener changes need a restart.
	if cfgFile != "" {
		watcher := config.NewWatcher(cfgFile)
		go func() {
			err := watcher.Watch(ctx, func(next *config.Config) {
				telemetry.SetupLogging(telemetry.LogConfig{
					Level:  next.Logging.Level,
					Format: next.Logging.Format,
				})
				pipeline.SetProviders(bundleProviders(
					providers.NewRegistry(registryConfig(next))))
			})
			if err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
	}

	srv := server.New(cfg.Server, pipeline, metrics, cfg.Debug.AllowTrace)
	return srv.Start(ctx)
}

func openCache(ctx context.Context, cfg *config.Config) (store.Cache, error) {
	switch cfg.Database.Backend {
	case "postgres":
		return store.NewPostgresCache(ctx, store.PostgresConfig{URL: cfg.Database.URL})
	case "sqlite":
		if err := ensureDir(cfg.Database.SQLitePath); err != nil {
			return nil, err
		}
		return store.NewSQLiteCache(store.SQLiteConfig{Path: cfg.Database.SQLitePath})
	case "memory":
		return store.NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
	}
}

func openUsageLog(cfg *config.Config) (store.UsageStore, error) {
	if cfg.Database.Backend == "memory" {
		return store.NewMemoryUsageLog(), nil
	}
	if err := ensureDir(cfg.Database.UsagePath); err != nil {
		return nil, err
	}
	return store.NewUsageLog(cfg.Database.UsagePath)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func bundleProviders(reg *providers.Registry) analysis.Providers {
	return analysis.Providers{
		RxNorm:     reg.RxNorm,
		Supplement: reg.Supplement,
		Labels:     reg.Labels,
		Events:     reg.Events,
		Exposure:   reg.Exposure,
		Literature: reg.Literature,
	}
}

func registryConfig(cfg *config.Config) providers.RegistryConfig {
	p := cfg.Providers
	return providers.RegistryConfig{
		RxNorm: providers.RxNormConfig{
			BaseURL:            p.RxNorm.BaseURL,
			LookupTimeout:      p.RxNorm.LookupTimeout,
			InteractionTimeout: p.RxNorm.InteractionTimeout,
		},
		Supplement: providers.SupplementConfig{
			BaseURL: p.Supplement.BaseURL,
			APIKey:  p.Supplement.APIKey,
			Timeout: p.Supplement.Timeout,
		},
		Labels: providers.LabelConfig{
			BaseURL: p.Labels.BaseURL,
			Timeout: p.Labels.Timeout,
			Retry: fetch.RetryPolicy{
				MaxRetries:  p.Labels.MaxRetries,
				BackoffBase: p.Labels.BackoffBase,
			},
			ClassBlocklist: p.Labels.ClassBlocklist,
		},
		AdverseEvents: providers.AdverseEventConfig{
			BaseURL: p.AdverseEvents.BaseURL,
			Timeout: p.AdverseEvents.Timeout,
		},
		Exposure: providers.ExposureConfig{
			BaseURL: p.Exposure.BaseURL,
			Timeout: p.Exposure.Timeout,
			Enabled: p.Exposure.Enabled,
		},
		Literature: providers.LiteratureConfig{
			APIKey:  p.Literature.APIKey,
			Model:   p.Literature.Model,
			Timeout: p.Literature.Timeout,
		},
	}
}
