package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/statusbar"
	"github.com/jpalmerr/statusbar/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a statusbar configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. With --discover it also loads the page and lists the jobs it
would poll, which checks the selectors against the real markup.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  statusbar validate -c config.yaml
  statusbar validate -c config.yaml --discover`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	validateCmd.Flags().Bool("discover", false, "load the page and list its jobs")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sbCfg, opts := config.BuildOptions(cfg)
	opts = append(opts, statusbar.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	p, err := statusbar.New(sbCfg, opts...)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	port := fmt.Sprintf("%d", cfg.Port)
	if cfg.Headless {
		port = "none (headless)"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Status URL:    %s{id}/\n", cfg.URL)
	fmt.Printf("  Page:          %s\n", pageLocation(cfg))
	fmt.Printf("  Port:          %s\n", port)
	fmt.Printf("  Poll interval: %s\n", cfg.PollInterval.Duration())

	discover, _ := cmd.Flags().GetBool("discover")
	if !discover {
		return nil
	}

	jobs, err := p.Discover(cmd.Context())
	if err != nil {
		return fmt.Errorf("page check failed: %w", err)
	}

	fmt.Printf("  Jobs:          %d\n", len(jobs))
	for _, j := range jobs {
		fmt.Printf("    [%d] %s -> %s\n", j.Index, j.ID, j.URL)
	}

	return nil
}
