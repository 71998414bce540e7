package statusbar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpalmerr/statusbar/dashboard"
	"github.com/jpalmerr/statusbar/internal/job"
	"github.com/jpalmerr/statusbar/internal/metrics"
	"github.com/jpalmerr/statusbar/internal/page"
	"github.com/jpalmerr/statusbar/internal/poller"
	"github.com/jpalmerr/statusbar/internal/server"
	"github.com/jpalmerr/statusbar/internal/store"
)

const (
	defaultStartupDelay    = 500 * time.Millisecond
	defaultPollingInterval = 2 * time.Second
	defaultReloadDelay     = 500 * time.Millisecond
	defaultPort            = 8080
	defaultMaxConcurrency  = 0 // one request per job
)

var (
	// ErrNoPageSource is returned by [New] when no page option was given.
	ErrNoPageSource = errors.New("a page source is required")

	// ErrMisaligned is returned when the starting, progress bar, indicator
	// and status label selections do not have the same length.
	ErrMisaligned = page.ErrMisaligned
)

// Poller watches the jobs on a page and keeps their progress indicators
// current until one completes, then reloads the page.
//
// Poller is created using [New] with functional options and started with
// [Poller.Run].
//
// The typical lifecycle is:
//
//	p, err := statusbar.New(statusbar.Config{
//	    URL:           "https://jobs.example.com/progress/",
//	    AttrName:      "data-job",
//	    PercentageKey: "percentage",
//	    StatusKey:     "status",
//	}, statusbar.WithPageFile("jobs.html"))
//	if err != nil {
//	    slog.Error("failed to create poller", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	p.Run(ctx) // blocks until context cancelled
type Poller struct {
	cfg       Config
	opts      *sbConfig
	selectors page.Selectors
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// New creates a new [Poller] for the given [Config].
//
// A page source must be configured via [WithPageFile], [WithPageURL],
// [WithPageHTML] or [WithPageSource]. Other options have defaults:
//   - Startup delay: 500ms
//   - Polling interval: 2 seconds
//   - Reload delay: 500ms
//   - Request timeout: the polling interval
//   - Port: 8080
//   - Max concurrency: one request per job
//
// Returns an error if cfg is invalid, no page source is set, or any option
// is invalid.
func New(cfg Config, opts ...Option) (*Poller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &sbConfig{
		selectors:       DefaultSelectors(),
		port:            defaultPort,
		startupDelay:    defaultStartupDelay,
		pollingInterval: defaultPollingInterval,
		reloadDelay:     defaultReloadDelay,
		headers:         make(map[string]string),
		maxConcurrency:  defaultMaxConcurrency,
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.source == nil {
		return nil, ErrNoPageSource
	}
	if o.requestTimeout == 0 {
		o.requestTimeout = o.pollingInterval
	}

	// default to slog.Default() if no logger provided
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		cfg:       cfg,
		opts:      o,
		selectors: o.selectors.toPage(),
		metrics:   metrics.New(o.registry),
		logger:    logger,
	}, nil
}

// Config returns the Poller's endpoint configuration.
func (p *Poller) Config() Config {
	return p.cfg
}

// Port returns the configured HTTP port. Zero means headless.
func (p *Poller) Port() int {
	return p.opts.port
}

// PollingInterval returns the configured interval between polls.
func (p *Poller) PollingInterval() time.Duration {
	return p.opts.pollingInterval
}

// Discover loads the page and returns its jobs without polling them.
//
// Returns an error if the page cannot be loaded, the selections are
// misaligned, or a job marker lacks the id attribute.
func (p *Poller) Discover(ctx context.Context) ([]Job, error) {
	_, jobs, err := p.loadPage(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Job, len(jobs))
	for i, j := range jobs {
		out[i] = Job{
			Index:  j.Index,
			ID:     j.ID,
			URL:    p.cfg.jobURL(j.ID),
			Width:  j.Width,
			Label:  j.Label,
			Status: j.Status,
		}
	}
	return out, nil
}

// Run loads the page and polls its jobs until ctx is cancelled.
//
// Run is a blocking call. During execution:
//
//   - The page is loaded and its jobs discovered; failure here is returned
//   - The HTTP server serves the live page (unless the port is 0)
//   - After the startup delay every job is polled once per interval
//   - Reported progress is written into the page and pushed to browsers
//   - When a job reports 100, the page is reloaded after the reload delay
//     and polling restarts on the freshly discovered jobs
//
// A page without jobs is served but never polled.
//
// Returns nil on graceful shutdown.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("statusbar starting", "url", p.cfg.URL, "attr", p.cfg.AttrName)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	pg, jobs, err := p.loadPage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	jobStore := store.NewMemoryStore()
	holder := &page.Holder{}
	p.publish(jobStore, holder, pg, jobs)

	if p.opts.port > 0 {
		httpServer := server.NewServer(jobStore, holder, p.opts.port, dashboard.Assets, p.metrics, p.logger)
		if err := httpServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		p.logger.Info("page available", "url", fmt.Sprintf("http://localhost:%d", p.opts.port))
	}

	for {
		if len(jobs) == 0 {
			p.logger.Info("no jobs on page; nothing to poll")
			<-ctx.Done()
			break
		}

		if !p.runSession(ctx, jobStore, pg, jobs) {
			break
		}

		pg, jobs, err = p.reloadPage(ctx)
		if err != nil {
			break
		}
		p.publish(jobStore, holder, pg, jobs)
		jobStore.Reload()
		p.metrics.ObserveReload()
		p.logger.Info("page reloaded", "job_count", len(jobs))
	}

	p.logger.Info("statusbar stopped")
	return nil
}

// loadPage loads the page from its source and discovers its jobs.
// When the HTTP server is enabled the client script is injected.
func (p *Poller) loadPage(ctx context.Context) (*page.Page, []page.Job, error) {
	pg, err := page.Load(ctx, p.opts.source)
	if err != nil {
		return nil, nil, err
	}

	jobs, err := pg.Discover(p.selectors, p.cfg.AttrName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover jobs: %w", err)
	}

	if p.opts.port > 0 {
		pg.InjectClient(server.ClientScriptPath, map[string]string{
			"data-events":      server.EventsPath,
			"data-progressbar": p.selectors.ProgressBar,
			"data-indicator":   p.selectors.Indicator,
			"data-statuslabel": p.selectors.StatusLabel,
		})
	}

	return pg, jobs, nil
}

// reloadPage loads the page again, retrying every polling interval until it
// succeeds or ctx is cancelled.
func (p *Poller) reloadPage(ctx context.Context) (*page.Page, []page.Job, error) {
	for {
		pg, jobs, err := p.loadPage(ctx)
		if err == nil {
			return pg, jobs, nil
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		p.logger.Warn("page reload failed; retrying",
			"error", err.Error(),
			"retry_in", p.opts.pollingInterval.String(),
		)

		timer := time.NewTimer(p.opts.pollingInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// publish makes pg the served page and resets the store to its jobs.
func (p *Poller) publish(jobStore store.Store, holder *page.Holder, pg *page.Page, jobs []page.Job) {
	statuses := make([]store.JobStatus, len(jobs))
	for i, j := range jobs {
		status := j.Status
		statuses[i] = store.JobStatus{
			Index:  j.Index,
			ID:     j.ID,
			URL:    p.cfg.jobURL(j.ID),
			State:  job.Pending.String(),
			Width:  j.Width,
			Label:  j.Label,
			Status: &status,
		}
	}

	jobStore.Reset(statuses)
	holder.Set(pg)
	p.metrics.SetJobs(len(jobs))
}

// session is the state of one polling session over one loaded page.
type session struct {
	page     *page.Page
	store    store.Store
	states   []job.State
	lastTick []uint64
}

// runSession polls jobs until a completed job's reload delay elapses
// (returns true) or ctx is cancelled (returns false). In-flight requests are
// cancelled when the session ends.
func (p *Poller) runSession(ctx context.Context, jobStore store.Store, pg *page.Page, jobs []page.Job) bool {
	targets := make([]poller.Target, len(jobs))
	for i, j := range jobs {
		targets[i] = poller.Target{Index: j.Index, ID: j.ID, URL: p.cfg.jobURL(j.ID)}
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	scheduler := poller.NewScheduler(targets, p.schedulerConfig(), p.logger)
	scheduler.Start(sessionCtx)
	defer scheduler.Stop()

	p.logger.Info("polling jobs",
		"job_count", len(jobs),
		"interval", p.opts.pollingInterval.String(),
	)

	s := &session{
		page:     pg,
		store:    jobStore,
		states:   make([]job.State, len(jobs)),
		lastTick: make([]uint64, len(jobs)),
	}

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return false

		case <-reload:
			p.logger.Info("reloading page")
			return true

		case result, ok := <-scheduler.Results():
			if !ok {
				return false
			}
			if !p.handleResult(s, result) || reload != nil {
				continue
			}
			scheduler.Retire(result.Index)
			timer := time.NewTimer(p.opts.reloadDelay)
			defer timer.Stop()
			reload = timer.C
			p.logger.Info("job complete; reload scheduled",
				"job", result.ID,
				"delay", p.opts.reloadDelay.String(),
			)
		}
	}
}

func (p *Poller) schedulerConfig() poller.Config {
	keys := job.Keys{Percentage: p.cfg.PercentageKey, Status: p.cfg.StatusKey}
	return poller.Config{
		StartupDelay:      p.opts.startupDelay,
		Interval:          p.opts.pollingInterval,
		Timeout:           p.opts.requestTimeout,
		MaxConcurrency:    p.opts.maxConcurrency,
		Headers:           copyMap(p.opts.headers),
		RequestsPerSecond: p.opts.ratePerSecond,
		Retry:             p.opts.retry.toPoller(),
		Decoder: func(body []byte) (job.Payload, error) {
			return job.Decode(body, keys)
		},
	}
}

// handleResult applies one poll result to the page and the store and
// reports whether it scheduled a reload.
func (p *Poller) handleResult(s *session, result poller.Result) bool {
	i := result.Index
	if i < 0 || i >= len(s.states) {
		return false
	}

	// a newer tick already applied a result for this job
	if result.Tick < s.lastTick[i] {
		p.logger.Debug("dropping stale poll result", "job", result.ID, "tick", result.Tick)
		return false
	}
	s.lastTick[i] = result.Tick

	current, _ := s.store.Get(i)
	current.Failures = result.Failures
	current.Exhausted = result.Exhausted
	current.ResponseTimeMs = result.Latency.Milliseconds()
	current.CheckedAt = result.CheckedAt

	update := JobUpdate{
		Index:       result.Index,
		ID:          result.ID,
		URL:         result.URL,
		Failures:    result.Failures,
		Exhausted:   result.Exhausted,
		Latency:     result.Latency,
		CheckedAt:   result.CheckedAt,
		Error:       result.Error,
		RawResponse: copyBytes(result.RawResponse),
		StatusCode:  result.StatusCode,
	}

	logAttrs := []any{
		"job", result.ID,
		"url", result.URL,
		"latency_ms", result.Latency.Milliseconds(),
	}

	p.metrics.SetFailures(result.ID, result.Failures)

	if result.Error != nil {
		errStr := result.Error.Error()
		current.Error = &errStr
		s.store.Update(current)

		update.State = stateFromJob(s.states[i])
		p.metrics.ObservePoll(metrics.ResultError, result.Latency)
		p.logger.Warn("poll failed", append(logAttrs,
			"failures", result.Failures,
			"error", errStr,
		)...)
		if result.Exhausted {
			p.logger.Warn("giving up on job after repeated failures", "job", result.ID, "failures", result.Failures)
		}
		p.notify(update)
		return false
	}
	current.Error = nil

	next, effects := job.Transition(s.states[i], result.Payload)
	s.states[i] = next
	current.State = next.String()

	outcome := metrics.ResultSkipped
	reload := false
	for _, effect := range effects {
		switch e := effect.(type) {
		case job.UpdateIndicators:
			if err := s.page.Apply(i, page.Indicators{Width: e.Width, Label: e.Label, Status: e.Status}); err != nil {
				p.logger.Error("failed to update page", "job", result.ID, "error", err.Error())
			}
			current.Percentage = result.Payload.Text
			current.Width = e.Width
			current.Label = e.Label
			if e.Status != nil {
				status := *e.Status
				current.Status = &status
			}
			p.metrics.SetPercentage(result.ID, result.Payload.Percentage)
			outcome = metrics.ResultSuccess
		case job.ScheduleReload:
			reload = true
		}
	}

	s.store.Update(current)
	p.metrics.ObservePoll(outcome, result.Latency)

	update.State = stateFromJob(next)
	update.Reported = result.Payload.Reported
	update.Percentage = result.Payload.Text
	if result.Payload.Status != nil {
		status := *result.Payload.Status
		update.Status = &status
	}
	update.Reload = reload

	p.logger.Debug("poll completed", append(logAttrs,
		"state", current.State,
		"percentage", result.Payload.Text,
	)...)
	p.notify(update)

	return reload
}

// notify invokes every update callback in registration order.
func (p *Poller) notify(update JobUpdate) {
	for _, cb := range p.opts.updateCallbacks {
		invokeCallbackSafe(cb, update, p.logger)
	}
}

// copyMap returns a shallow copy of the map, or nil if input is nil.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// copyBytes returns a copy of the byte slice, or nil if input is nil.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// invokeCallbackSafe calls an update callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(JobUpdate), update JobUpdate, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update callback panicked",
				"panic", r,
				"job", update.ID,
			)
		}
	}()
	cb(update)
}
