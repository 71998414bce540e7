// Package statusbar keeps the progress bars of a job page current by
// polling a status endpoint for each job.
//
// A page lists running jobs as four element sequences paired by position:
// a starting marker carrying the job id, a progress bar, a percentage
// indicator and a status label. statusbar discovers the jobs, polls
// URL+id+"/" for each of them on a shared interval and writes the reported
// percentage and status back into the page. When a job reports exactly 100
// the page is reloaded and polling restarts on whatever jobs it then lists.
//
// # Quick Start
//
//	cfg := statusbar.DefaultConfig()
//	cfg.URL = "https://jobs.example.com/progress/"
//
//	p, _ := statusbar.New(cfg, statusbar.WithPageFile("jobs.html"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	p.Run(ctx) // blocks until context is cancelled
//
// The live page is served at http://localhost:8080. Browsers receive
// progress over Server-Sent Events and reload themselves when a job
// completes.
//
// # Configuration
//
// statusbar uses the functional options pattern for configuration:
//
//	p, err := statusbar.New(cfg,
//	    statusbar.WithPageURL("https://jobs.example.com/jobs"),
//	    statusbar.WithPollingInterval(5 * time.Second),
//	    statusbar.WithHeaders("Authorization", "Bearer token"),
//	    statusbar.WithRetryPolicy(statusbar.RetryPolicy{
//	        Backoff:     statusbar.BackoffExponential,
//	        MaxFailures: 10,
//	    }),
//	    statusbar.WithPort(9090),
//	)
//
// # Payloads
//
// Each status response is a JSON object. The percentage field is read with
// truthiness rules: an absent, null, false, 0 or "" percentage leaves the
// job untouched. Any other number or numeric string is written verbatim as
// the bar width and indicator text, followed by "%". The status field, when
// present, replaces the status label; a null status empties it.
//
// # Architecture
//
// statusbar consists of several internal packages (under internal/):
//
//   - internal/job: Payload decoding and the per-job state machine
//   - internal/page: HTML parsing, job discovery and indicator updates
//   - internal/poller: Shared ticker, per-job cancellation and retries
//   - internal/store: In-memory job state with pub/sub for live updates
//   - internal/server: HTTP server with the page, REST API and Server-Sent Events
//   - internal/metrics: Prometheus collectors
//   - dashboard: Embedded browser client script
//
// The internal packages are not part of the public API and may change
// without notice.
package statusbar
