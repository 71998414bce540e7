// Package main is the entry point for the statusbar CLI.
//
// statusbar can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	statusbar serve -c config.yaml               # Serve the live job page
//	statusbar validate -c config.yaml            # Validate configuration
//	statusbar validate -c config.yaml --discover # Also load the page and list jobs
//	statusbar version                            # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "statusbar",
	Short: "Live progress bars for a page of running jobs",
	Long: `statusbar keeps the progress bars of a job page up to date.

It finds the jobs listed on an HTML page, polls a status endpoint for
each of them and pushes the reported progress to browsers with
Server-Sent Events. When a job completes the page is reloaded.

Quick start:
  1. Create a config file (statusbar.yaml)
  2. Run: statusbar serve -c statusbar.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  url: https://jobs.example.com/progress/
  poll_interval: 2s
  page:
    file: ./jobs.html`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this statusbar binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("statusbar %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
