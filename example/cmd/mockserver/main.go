// Standalone mock job system for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/statusbar serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jpalmerr/statusbar/example/mockjobs"
)

func main() {
	fmt.Println("Mock job system starting on :9999")
	fmt.Println("  Page:     http://localhost:9999/jobs")
	fmt.Println("  Progress: http://localhost:9999/progress/{id}/")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	if err := mockjobs.New(4, slog.Default()).ListenAndServe(":9999"); err != nil {
		slog.Error("mock server error", "error", err)
		os.Exit(1)
	}
}
