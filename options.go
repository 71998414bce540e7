package statusbar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/statusbar/internal/page"
)

// PageSource opens the raw HTML of the job page. It is called on startup and
// again on every reload. The caller closes the returned reader.
type PageSource func(ctx context.Context) (io.ReadCloser, error)

// sbConfig holds mutable state during Poller construction.
type sbConfig struct {
	selectors       Selectors
	source          page.Source
	port            int
	startupDelay    time.Duration
	pollingInterval time.Duration
	reloadDelay     time.Duration
	requestTimeout  time.Duration
	headers         map[string]string
	maxConcurrency  int
	ratePerSecond   float64
	retry           RetryPolicy
	logger          *slog.Logger
	registry        *prometheus.Registry
	updateCallbacks []func(JobUpdate)
}

// Option is a function that configures a [Poller] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*sbConfig) error

// WithSelectors replaces the CSS selectors used to find jobs on the page.
//
// Defaults to [DefaultSelectors]. Returns an error if a selector is empty or
// does not compile.
func WithSelectors(s Selectors) Option {
	return func(cfg *sbConfig) error {
		if err := s.toPage().Validate(); err != nil {
			return err
		}
		cfg.selectors = s
		return nil
	}
}

// WithPageFile reads the job page from a local HTML file.
// The file is read again on every reload.
func WithPageFile(path string) Option {
	return func(cfg *sbConfig) error {
		if path == "" {
			return errors.New("page file path cannot be empty")
		}
		cfg.source = page.FileSource(path)
		return nil
	}
}

// WithPageURL fetches the job page over HTTP.
// The page is fetched again on every reload.
func WithPageURL(rawURL string) Option {
	return func(cfg *sbConfig) error {
		if rawURL == "" {
			return errors.New("page URL cannot be empty")
		}
		cfg.source = page.URLSource(&http.Client{Timeout: 30 * time.Second}, rawURL)
		return nil
	}
}

// WithPageHTML uses a fixed HTML document as the job page.
func WithPageHTML(html string) Option {
	return func(cfg *sbConfig) error {
		cfg.source = page.StringSource(html)
		return nil
	}
}

// WithPageSource uses a custom [PageSource] for the job page.
func WithPageSource(src PageSource) Option {
	return func(cfg *sbConfig) error {
		if src == nil {
			return errors.New("page source cannot be nil")
		}
		cfg.source = page.Source(src)
		return nil
	}
}

// WithPort sets the HTTP port serving the live page.
//
// The page, its API and the event stream are available at
// http://localhost:<port>. Defaults to 8080. Port 0 runs headless, without
// an HTTP server.
//
// Returns an error if the port is outside the range 0-65535.
func WithPort(port int) Option {
	return func(cfg *sbConfig) error {
		if port < 0 || port > 65535 {
			return errors.New("port must be between 0 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithStartupDelay sets the wait before the first poll. Defaults to 500ms.
func WithStartupDelay(d time.Duration) Option {
	return func(cfg *sbConfig) error {
		if d < 0 {
			return errors.New("startup delay cannot be negative")
		}
		cfg.startupDelay = d
		return nil
	}
}

// WithPollingInterval sets how often all jobs are polled. Defaults to 2s.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *sbConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithReloadDelay sets the wait between a job reaching 100 and the page
// reload. Defaults to 500ms.
func WithReloadDelay(d time.Duration) Option {
	return func(cfg *sbConfig) error {
		if d < 0 {
			return errors.New("reload delay cannot be negative")
		}
		cfg.reloadDelay = d
		return nil
	}
}

// WithRequestTimeout sets the per-request timeout.
//
// Defaults to the polling interval; a job's request still running when its
// next tick starts is cancelled regardless.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *sbConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithHeaders sets HTTP headers sent with every status request.
//
// Arguments are key-value pairs:
//
//	statusbar.WithHeaders("Authorization", "Bearer token", "X-Session", "abc")
//
// Returns an error if an odd number of arguments is provided.
func WithHeaders(keyValues ...string) Option {
	return func(cfg *sbConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithMaxConcurrency caps the number of status requests in flight at once.
// Jobs waiting for a slot are sent in page order, and a job still waiting
// when the next tick starts keeps its place. Defaults to one request per job.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *sbConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithRateLimit caps status requests per second across all jobs.
// Zero, the default, means unlimited.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(cfg *sbConfig) error {
		if requestsPerSecond < 0 {
			return errors.New("rate limit cannot be negative")
		}
		cfg.ratePerSecond = requestsPerSecond
		return nil
	}
}

// WithRetryPolicy sets how failed polls are retried.
// The default retries every tick forever.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(cfg *sbConfig) error {
		switch p.Backoff {
		case "", BackoffFixed, BackoffExponential:
		default:
			return fmt.Errorf("unknown backoff strategy %q", p.Backoff)
		}
		if p.MaxBackoff < 0 {
			return errors.New("max backoff cannot be negative")
		}
		cfg.retry = p
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Poller.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *sbConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithRegistry registers the Poller's Prometheus metrics on reg.
//
// If not specified, each Poller gets a private registry, which is still
// exposed at /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(cfg *sbConfig) error {
		if reg == nil {
			return errors.New("registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}

// WithUpdateCallback registers a function called after every applied poll.
//
// Multiple callbacks may be registered; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They are invoked synchronously
// from the goroutine applying poll results, so a blocking callback delays
// every job. Panics within callbacks are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithUpdateCallback(cb func(JobUpdate)) Option {
	return func(cfg *sbConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.updateCallbacks = append(cfg.updateCallbacks, cb)
		return nil
	}
}
