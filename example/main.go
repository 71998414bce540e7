package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/statusbar"
	"github.com/jpalmerr/statusbar/example/mockjobs"
)

func main() {
	// start the fake job system (see mockjobs)
	go func() {
		if err := mockjobs.New(4, slog.Default()).ListenAndServe(":9999"); err != nil {
			slog.Error("mock server error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	cfg := statusbar.DefaultConfig()
	cfg.URL = "http://localhost:9999/progress/"

	p, err := statusbar.New(cfg,
		statusbar.WithPageURL("http://localhost:9999/jobs"),
		statusbar.WithPollingInterval(time.Second),
		statusbar.WithPort(8080),
		statusbar.WithUpdateCallback(func(u statusbar.JobUpdate) {
			if u.Reload {
				slog.Info("job complete", "job", u.ID)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create poller", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  statusbar demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  4 mock jobs, each running 20-60s; finished jobs are replaced")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		slog.Error("statusbar error", "error", err)
		os.Exit(1)
	}
}
