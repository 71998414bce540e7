package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jpalmerr/statusbar/internal/job"
)

const (
	defaultStartupDelay = 500 * time.Millisecond
	defaultInterval     = 2 * time.Second
)

// Target is one job to poll.
type Target struct {
	// Index is the job's position on the page.
	Index int

	// ID is the job id read from the page.
	ID string

	// URL is the status endpoint for this job.
	URL string
}

// Decoder turns a successful response body into a payload.
type Decoder func(body []byte) (job.Payload, error)

// Config controls the scheduler.
//   - StartupDelay: wait before the first tick (default 500ms; zero is allowed).
//   - Interval: period of the shared ticker (default 2s).
//   - Timeout: per-request timeout (zero means none; the next tick still cancels).
//   - MaxConcurrency: requests in flight at once (zero means one per job).
//   - Headers: extra HTTP headers sent with every request.
//   - RequestsPerSecond: client-side rate limit; zero means unlimited.
//   - Retry: reaction to failed polls.
//   - Decoder: payload decoder (default: "percentage" and "status" keys).
type Config struct {
	StartupDelay      time.Duration
	Interval          time.Duration
	Timeout           time.Duration
	MaxConcurrency    int
	Headers           map[string]string
	RequestsPerSecond float64
	Retry             RetryPolicy
	Decoder           Decoder
}

// Result holds the outcome of polling one job on one tick.
type Result struct {
	Target

	// Tick is the sequence number of the tick that issued the request.
	// Ticks start at 1 and increase by one.
	Tick uint64

	// Payload is the decoded response. Zero when Error is set.
	Payload job.Payload

	// StatusCode is the HTTP status code, zero if no response arrived.
	StatusCode int

	// Latency is the time taken by the request.
	Latency time.Duration

	// CheckedAt is when the request completed.
	CheckedAt time.Time

	// Error is set for transport errors, non-2xx responses and payloads
	// that cannot be decoded.
	Error error

	// Failures is the job's consecutive failure count after this poll.
	Failures int

	// Exhausted is true when the retry policy gave up on the job.
	// The job is not polled again in this scheduler.
	Exhausted bool

	// RawResponse is the response body, for debugging.
	RawResponse []byte
}

// Scheduler polls a fixed set of jobs on a shared ticker.
//
// The first tick fires after the startup delay; afterwards every tick issues
// one request per due job. A job's new request cancels its own request still
// in flight from an earlier tick, and that superseded request emits no
// result. A slow job never delays or cancels the requests of other jobs.
//
// With MaxConcurrency set, jobs wait in a queue for a free slot. A job still
// waiting when the next tick fires keeps its place and is sent for the newer
// tick, so jobs late in the page order are not starved by slow ones.
//
// A scheduler without targets never arms a timer and never sends a request.
//
// All lifecycle methods (Start, Stop, Retire) are safe for concurrent use.
type Scheduler struct {
	targets []Target
	cfg     Config
	client  *Client
	limiter *rate.Limiter
	queue   chan int
	results chan Result
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once

	// dispatch state, guarded by mu
	tick    uint64
	slots   []jobSlot
	retries []*retryState
	retired []bool
}

// jobSlot is the dispatch state of one job.
type jobSlot struct {
	queued    bool // waiting in the queue, not sent yet
	tick      uint64
	tickStart time.Time

	// the request in flight, if any
	inflight uint64
	cancel   context.CancelFunc
}

// NewScheduler creates a new polling [Scheduler].
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. Results are available via [Scheduler.Results].
func NewScheduler(targets []Target, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.StartupDelay < 0 {
		cfg.StartupDelay = defaultStartupDelay
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.MaxConcurrency <= 0 || cfg.MaxConcurrency > len(targets) {
		cfg.MaxConcurrency = len(targets)
	}
	if cfg.Decoder == nil {
		keys := job.Keys{Percentage: "percentage", Status: "status"}
		cfg.Decoder = func(body []byte) (job.Payload, error) {
			return job.Decode(body, keys)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if b := int(cfg.RequestsPerSecond); b > burst {
			burst = b
		}
	}

	retries := make([]*retryState, len(targets))
	for i := range retries {
		retries[i] = newRetryState(cfg.Retry, cfg.Interval)
	}

	return &Scheduler{
		targets: append([]Target(nil), targets...),
		cfg:     cfg,
		client:  NewClient(cfg.MaxConcurrency),
		limiter: rate.NewLimiter(limit, burst),
		// a job is queued at most once, so the queue never blocks
		queue:   make(chan int, len(targets)),
		results: make(chan Result, len(targets)),
		logger:  logger,
		slots:   make([]jobSlot, len(targets)),
		retries: retries,
		retired: make([]bool, len(targets)),
	}
}

// Results returns a receive-only channel that emits [Result] values.
//
// The channel is closed when the scheduler stops. Consumers should read
// until it is closed.
func (s *Scheduler) Results() <-chan Result {
	return s.results
}

// Start begins the polling loop in a background goroutine.
//
// Start is non-blocking. The scheduler waits for the startup delay, polls
// every job once, then re-polls all due jobs on each tick until
// [Scheduler.Stop] is called or ctx is cancelled.
//
// If ctx is nil, context.Background() is used. Start is idempotent, and a
// no-op after Stop or when there are no targets.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if len(s.targets) == 0 {
		s.mu.Unlock()
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	loopCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	for i := 0; i < s.cfg.MaxConcurrency; i++ {
		s.workers.Add(1)
		go s.worker(loopCtx)
	}
	s.mu.Unlock()

	go s.run(loopCtx)
}

// Stop halts the scheduler and waits for all goroutines to complete.
//
// Stop cancels in-flight requests, waits for the loop and every worker to
// exit, then closes the results channel. Stop is idempotent and safe to
// call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	// clean up client connections after all goroutines complete
	if s.client != nil {
		s.client.Close()
	}

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}

// Retire stops polling the job with the given page index.
// Requests already in flight still deliver their result.
func (s *Scheduler) Retire(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pos, t := range s.targets {
		if t.Index == index {
			s.retired[pos] = true
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		// workers exit on the same context; results close once they are gone
		s.workers.Wait()
		s.closeOnce.Do(func() { close(s.results) })
		s.wg.Done()
	}()

	timer := time.NewTimer(s.cfg.StartupDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	s.startTick(time.Now())

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.startTick(time.Now())
		}
	}
}

// startTick queues every due job, in index order, for the tick starting at
// now. A job still queued from an earlier tick keeps its place; a job with a
// request in flight has that request cancelled and is queued again.
func (s *Scheduler) startTick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	for pos := range s.targets {
		if s.retired[pos] || !s.retries[pos].due(now) {
			continue
		}

		slot := &s.slots[pos]
		slot.tick = s.tick
		slot.tickStart = now
		if slot.queued {
			continue
		}
		if slot.cancel != nil {
			slot.cancel()
			slot.cancel = nil
			slot.inflight = 0
		}
		slot.queued = true
		s.queue <- pos
	}
}

// worker sends queued requests until ctx is cancelled.
func (s *Scheduler) worker(ctx context.Context) {
	defer s.workers.Done()

	for {
		var pos int
		select {
		case <-ctx.Done():
			return
		case pos = <-s.queue:
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		s.mu.Lock()
		slot := &s.slots[pos]
		slot.queued = false
		if s.retired[pos] || s.retries[pos].exhausted {
			s.mu.Unlock()
			continue
		}
		tick, tickStart := slot.tick, slot.tickStart
		reqCtx, cancel := context.WithCancel(ctx)
		slot.inflight = tick
		slot.cancel = cancel
		s.mu.Unlock()

		result, ok := s.pollTarget(reqCtx, tick, tickStart, pos)

		s.mu.Lock()
		if slot.inflight == tick {
			slot.inflight = 0
			slot.cancel = nil
		}
		s.mu.Unlock()
		cancel()

		if !ok {
			continue
		}
		select {
		case s.results <- result:
		case <-ctx.Done():
			return
		}
	}
}

// pollTarget polls the job at pos. It returns false when the request was
// cancelled because the job's next tick superseded it or the scheduler is
// stopping.
func (s *Scheduler) pollTarget(reqCtx context.Context, tick uint64, tickStart time.Time, pos int) (Result, bool) {
	t := s.targets[pos]
	resp := s.client.Fetch(reqCtx, t.URL, s.cfg.Headers, s.cfg.Timeout)
	if resp.Error != nil && reqCtx.Err() != nil {
		return Result{}, false
	}

	result := Result{
		Target:      t,
		Tick:        tick,
		StatusCode:  resp.StatusCode,
		Latency:     resp.Latency,
		CheckedAt:   time.Now(),
		Error:       resp.Error,
		RawResponse: resp.Body,
	}

	if result.Error == nil {
		payload, err := s.safeDecode(resp.Body)
		if err != nil {
			result.Error = err
		} else {
			result.Payload = payload
		}
	}

	s.mu.Lock()
	rs := s.retries[pos]
	if result.Error != nil {
		rs.failure(tickStart)
	} else {
		rs.success()
	}
	result.Failures = rs.failures
	result.Exhausted = rs.exhausted
	s.mu.Unlock()

	return result, true
}

// safeDecode calls the decoder with panic recovery.
// If the decoder panics, it logs the full stack trace with a correlation ID
// and returns an error containing the ID.
func (s *Scheduler) safeDecode(body []byte) (payload job.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			s.logger.Error("decoder panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			payload = job.Payload{}
			err = fmt.Errorf("decoder panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.cfg.Decoder(body)
}
