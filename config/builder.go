package config

import (
	"sort"

	"github.com/jpalmerr/statusbar"
)

// BuildOptions converts parsed configuration into the SDK [statusbar.Config]
// and the options to pass to [statusbar.New].
//
// Only values present in the file become options, so SDK defaults apply to
// everything else. The logger and registry are left to the caller.
func BuildOptions(cfg *Config) (statusbar.Config, []statusbar.Option) {
	sbCfg := statusbar.Config{
		URL:           cfg.URL,
		AttrName:      cfg.AttrName,
		PercentageKey: cfg.Percentage,
		StatusKey:     cfg.Status,
	}

	var opts []statusbar.Option

	if cfg.Page.File != "" {
		opts = append(opts, statusbar.WithPageFile(cfg.Page.File))
	} else {
		opts = append(opts, statusbar.WithPageURL(cfg.Page.URL))
	}

	if cfg.Headless {
		opts = append(opts, statusbar.WithPort(0))
	} else {
		opts = append(opts, statusbar.WithPort(cfg.Port))
	}

	if sel, ok := buildSelectors(cfg.Selectors); ok {
		opts = append(opts, statusbar.WithSelectors(sel))
	}

	opts = append(opts, statusbar.WithPollingInterval(cfg.PollInterval.Duration()))

	if cfg.StartupDelay != 0 {
		opts = append(opts, statusbar.WithStartupDelay(cfg.StartupDelay.Duration()))
	}
	if cfg.ReloadDelay != 0 {
		opts = append(opts, statusbar.WithReloadDelay(cfg.ReloadDelay.Duration()))
	}
	if cfg.Timeout != 0 {
		opts = append(opts, statusbar.WithRequestTimeout(cfg.Timeout.Duration()))
	}
	if cfg.MaxConcurrency != 0 {
		opts = append(opts, statusbar.WithMaxConcurrency(cfg.MaxConcurrency))
	}
	if cfg.RequestsPerSecond != 0 {
		opts = append(opts, statusbar.WithRateLimit(cfg.RequestsPerSecond))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, statusbar.WithHeaders(mapToKeyValuePairs(cfg.Headers)...))
	}

	if cfg.Retry != (RetryConfig{}) {
		opts = append(opts, statusbar.WithRetryPolicy(statusbar.RetryPolicy{
			Backoff:     statusbar.BackoffStrategy(cfg.Retry.Backoff),
			MaxFailures: cfg.Retry.MaxFailures,
			MaxBackoff:  cfg.Retry.MaxBackoff.Duration(),
		}))
	}

	return sbCfg, opts
}

// buildSelectors fills unset selectors with the defaults.
// Returns false when nothing was overridden.
func buildSelectors(sc SelectorsConfig) (statusbar.Selectors, bool) {
	if sc == (SelectorsConfig{}) {
		return statusbar.Selectors{}, false
	}

	sel := statusbar.DefaultSelectors()
	if sc.Starting != "" {
		sel.Starting = sc.Starting
	}
	if sc.ProgressBar != "" {
		sel.ProgressBar = sc.ProgressBar
	}
	if sc.Indicator != "" {
		sel.Indicator = sc.Indicator
	}
	if sc.StatusLabel != "" {
		sel.StatusLabel = sc.StatusLabel
	}
	return sel, true
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
