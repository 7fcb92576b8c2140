package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/railscope/railscope/internal/config"
	"github.com/railscope/railscope/internal/dedup"
	"github.com/railscope/railscope/internal/forward"
	"github.com/railscope/railscope/internal/loki"
	"github.com/railscope/railscope/internal/railway"
)

var (
	lokiURL      string
	pollInterval time.Duration
)

var forwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Forward Railway deployment logs to Loki",
	Long: "Start the log forwarding daemon. It polls the latest deployment of every\n" +
		"configured service, filters out lines already shipped, and pushes the rest\n" +
		"to Loki labelled by project, service, and environment.",
	RunE: runForward,
}

func init() {
	forwardCmd.Flags().StringVar(&lokiURL, "loki-url", "", "Loki base URL (overrides config)")
	forwardCmd.Flags().DurationVar(&pollInterval, "interval", 0, "poll interval (overrides config)")
	rootCmd.AddCommand(forwardCmd)
}

func runForward(cmd *cobra.Command, _ []string) error {
	// 1. Parse config.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("railscope forward: %w", err)
	}

	// Apply CLI flag overrides.
	if lokiURL != "" {
		cfg.Loki.URL = lokiURL
	}
	if pollInterval != 0 {
		cfg.Forward.PollInterval = pollInterval
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err := cfg.ValidateForwarder(); err != nil {
		return fmt.Errorf("railscope forward: %w", err)
	}

	// 2. Set up structured logger.
	logger := setupLogger(cfg.LogLevel)

	logger.Info("starting railscope forwarder",
		"version", buildVersion,
		"projects", len(cfg.Projects),
	)

	// 3. Wire the pipeline: Railway client -> dedup window -> Loki client.
	client, err := railway.NewClient(cfg.Railway, buildVersion, logger)
	if err != nil {
		return fmt.Errorf("railscope forward: create railway client: %w", err)
	}
	pusher, err := loki.NewClient(cfg.Loki, buildVersion, logger)
	if err != nil {
		return fmt.Errorf("railscope forward: create loki client: %w", err)
	}
	window := dedup.NewWindow(cfg.Dedup)
	forwarder := forward.NewForwarder(cfg.Forward, client, window, pusher, cfg.Projects, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 4. Run until signalled.
	if err := forwarder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("railscope forward: %w", err)
	}

	logger.Info("railscope forwarder stopped")
	return nil
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
