// Package config provides YAML configuration parsing for statusbar.
//
// This package enables running statusbar as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	url: https://jobs.example.com/progress/
//	attr_name: data-job
//	percentage: percentage
//	status: status
//	poll_interval: 2s
//
//	page:
//	  file: ./jobs.html
//
//	headers:
//	  Authorization: "Bearer ${JOBS_TOKEN}"
//
//	retry:
//	  backoff: exponential
//	  max_failures: 10
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval for production configs.
// This prevents accidental DoS of the status endpoint with overly aggressive polling.
const minPollInterval = 1 * time.Second

const (
	defaultPort         = 8080
	defaultPollInterval = 2 * time.Second
)

// Config is the root configuration structure for statusbar.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Headless disables the HTTP server; jobs are still polled.
	Headless bool `yaml:"headless"`

	// URL is the base URL of the status endpoint. Each job is polled at
	// URL + id + "/".
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// AttrName is the attribute holding the job id. Defaults to "data-job".
	AttrName string `yaml:"attr_name"`

	// Percentage is the payload key of the percentage. Defaults to "percentage".
	Percentage string `yaml:"percentage"`

	// Status is the payload key of the status text. Defaults to "status".
	Status string `yaml:"status"`

	// Page says where the job page is loaded from.
	Page PageConfig `yaml:"page"`

	// Selectors overrides the CSS selectors of the job elements.
	Selectors SelectorsConfig `yaml:"selectors"`

	// StartupDelay is the wait before the first poll. Defaults to 500ms.
	StartupDelay Duration `yaml:"startup_delay"`

	// PollInterval is the time between polls of every job.
	// Accepts duration strings like "2s", "1m".
	// Defaults to 2s.
	PollInterval Duration `yaml:"poll_interval"`

	// ReloadDelay is the wait between a job completing and the page
	// reload. Defaults to 500ms.
	ReloadDelay Duration `yaml:"reload_delay"`

	// Timeout is the per-request timeout. Defaults to the poll interval.
	Timeout Duration `yaml:"timeout"`

	// MaxConcurrency caps requests in flight at once. Zero means one per job.
	MaxConcurrency int `yaml:"max_concurrency"`

	// RequestsPerSecond caps the request rate. Zero means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Headers are custom HTTP headers sent with each status request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Retry controls how failed polls are retried.
	Retry RetryConfig `yaml:"retry"`
}

// PageConfig locates the job page. Exactly one field must be set.
type PageConfig struct {
	// File is a local HTML file, re-read on every reload.
	File string `yaml:"file"`

	// URL is fetched with GET on every reload.
	URL string `yaml:"url"`
}

// SelectorsConfig overrides the default CSS selectors.
// Empty fields keep their default.
type SelectorsConfig struct {
	Starting    string `yaml:"starting"`
	ProgressBar string `yaml:"progressbar"`
	Indicator   string `yaml:"indicator"`
	StatusLabel string `yaml:"status_label"`
}

// RetryConfig controls how failed polls are retried.
type RetryConfig struct {
	// MaxFailures gives up on a job after this many consecutive failures.
	// Zero means never give up.
	MaxFailures uint64 `yaml:"max_failures"`

	// Backoff is "fixed" (default) or "exponential".
	Backoff string `yaml:"backoff"`

	// MaxBackoff caps exponential waits. Defaults to 30s.
	MaxBackoff Duration `yaml:"max_backoff"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in url, page.file, page.url and header
// values. Defaults are applied for port (8080), poll_interval (2s),
// attr_name, percentage and status.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}
	if cfg.AttrName == "" {
		cfg.AttrName = "data-job"
	}
	if cfg.Percentage == "" {
		cfg.Percentage = "percentage"
	}
	if cfg.Status == "" {
		cfg.Status = "status"
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.URL == "" {
		return errors.New("url is required")
	}
	expanded, err := expandEnvVars(c.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	c.URL = expanded
	if err := validateHTTPURL(c.URL); err != nil {
		return fmt.Errorf("url: %w", err)
	}

	if err := c.Page.expandAndValidate(); err != nil {
		return err
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}

	for _, d := range []struct {
		name  string
		value Duration
	}{
		{"startup_delay", c.StartupDelay},
		{"reload_delay", c.ReloadDelay},
		{"timeout", c.Timeout},
		{"retry.max_backoff", c.Retry.MaxBackoff},
	} {
		if d.value.Duration() < 0 {
			return fmt.Errorf("%s cannot be negative, got %s", d.name, d.value.Duration())
		}
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second cannot be negative, got %g", c.RequestsPerSecond)
	}

	for k, v := range c.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	switch c.Retry.Backoff {
	case "", "fixed", "exponential":
	default:
		return fmt.Errorf("retry.backoff must be fixed or exponential, got %q", c.Retry.Backoff)
	}

	return nil
}

// expandAndValidate checks that exactly one page source is set.
func (p *PageConfig) expandAndValidate() error {
	if p.File == "" && p.URL == "" {
		return errors.New("page: one of file or url is required")
	}
	if p.File != "" && p.URL != "" {
		return errors.New("page: file and url are mutually exclusive")
	}

	if p.File != "" {
		expanded, err := expandEnvVars(p.File)
		if err != nil {
			return fmt.Errorf("page.file: %w", err)
		}
		p.File = expanded
		return nil
	}

	expanded, err := expandEnvVars(p.URL)
	if err != nil {
		return fmt.Errorf("page.url: %w", err)
	}
	p.URL = expanded
	if err := validateHTTPURL(p.URL); err != nil {
		return fmt.Errorf("page.url: %w", err)
	}
	return nil
}

// validateHTTPURL checks that raw is an absolute http or https URL.
func validateHTTPURL(raw string) error {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if strings.TrimSpace(parsedURL.Host) == "" {
		return errors.New("url must have a host")
	}
	return nil
}
