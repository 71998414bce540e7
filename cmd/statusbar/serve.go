package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/statusbar"
	"github.com/jpalmerr/statusbar/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// serveCmd starts polling and serves the live page.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll jobs and serve the live page",
	Long: `Poll the jobs on the configured page and serve it with live progress.

The server will:
  - Load configuration from the specified YAML file
  - Load the job page and discover its jobs
  - Poll every job's status endpoint on the configured interval
  - Serve the page, /api/jobs, /api/sse and /metrics on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  statusbar serve -c config.yaml
  statusbar serve --config /etc/statusbar/config.yaml --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().Bool("debug", false, "log every poll")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	logger := newLogger(debug)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"url", cfg.URL,
		"page", pageLocation(cfg),
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"headless", cfg.Headless,
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	sbCfg, opts := config.BuildOptions(cfg)
	opts = append(opts, statusbar.WithLogger(logger))

	p, err := statusbar.New(sbCfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Run(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// pageLocation describes where the page is loaded from.
func pageLocation(cfg *config.Config) string {
	if cfg.Page.File != "" {
		return cfg.Page.File
	}
	return cfg.Page.URL
}
