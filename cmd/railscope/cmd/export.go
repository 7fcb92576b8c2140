package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/railscope/railscope/internal/config"
	"github.com/railscope/railscope/internal/exporter"
	"github.com/railscope/railscope/internal/railway"
)

// drainTimeout is the maximum time for graceful shutdown.
const drainTimeout = 30 * time.Second

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Serve Railway resource metrics to Prometheus",
	Long: "Start the metrics exporter daemon. It polls CPU, memory, and network usage\n" +
		"for every configured service and serves the latest values on /metrics.",
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	// 1. Parse config.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("railscope export: %w", err)
	}

	// Apply CLI flag overrides.
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err := cfg.ValidateExporter(); err != nil {
		return fmt.Errorf("railscope export: %w", err)
	}

	// 2. Set up structured logger.
	logger := setupLogger(cfg.LogLevel)

	logger.Info("starting railscope exporter",
		"version", buildVersion,
		"listen", cfg.Exporter.ListenAddress,
		"projects", len(cfg.Projects),
	)

	// 3. Create the Railway client and exporter.
	client, err := railway.NewClient(cfg.Railway, buildVersion, logger)
	if err != nil {
		return fmt.Errorf("railscope export: create railway client: %w", err)
	}
	exp := exporter.NewExporter(cfg.Exporter, client, cfg.Projects, buildVersion, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var wg sync.WaitGroup

	// 4. Start the collection loop.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = exp.Run(ctx)
	}()

	// 5. Start the metrics HTTP server. A serve failure ends the
	// process instead of leaving the collector running unreachable.
	serveErr := make(chan error, 1)
	go func() {
		if err := exp.Serve(); err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Wait for a shutdown signal or a server failure.
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", ctx.Err())
	case err := <-serveErr:
		stop()
		wg.Wait()
		return fmt.Errorf("railscope export: metrics server: %w", err)
	}

	// Graceful drain of in-flight scrapes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := exp.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown failed", "error", err)
	}

	wg.Wait()
	logger.Info("railscope exporter stopped")
	return nil
}
