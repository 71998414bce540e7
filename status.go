package statusbar

import (
	"time"

	"github.com/jpalmerr/statusbar/internal/job"
	"github.com/jpalmerr/statusbar/internal/page"
	"github.com/jpalmerr/statusbar/internal/poller"
)

// State is the lifecycle state of a job.
//
// A job starts [StatePending], moves to [StateInProgress] on its first
// reported percentage and becomes [StateComplete] at exactly 100.
// [StateComplete] is terminal.
type State string

const (
	// StatePending means no progress has been reported yet.
	StatePending State = "pending"

	// StateInProgress means at least one non-final percentage was reported.
	StateInProgress State = "in_progress"

	// StateComplete means the job reported 100 and a reload is scheduled.
	StateComplete State = "complete"
)

// String returns the string representation of the state.
// This implements the fmt.Stringer interface.
func (s State) String() string {
	return string(s)
}

func stateFromJob(s job.State) State {
	switch s {
	case job.InProgress:
		return StateInProgress
	case job.Complete:
		return StateComplete
	default:
		return StatePending
	}
}

// Selectors are the CSS selectors locating the four element sequences of
// the jobs on the page. Elements are paired by position.
type Selectors struct {
	// Starting selects the job markers carrying the id attribute.
	Starting string

	// ProgressBar selects the bars whose style width reflects progress.
	ProgressBar string

	// Indicator selects the elements showing the percentage text.
	Indicator string

	// StatusLabel selects the elements showing the status text.
	StatusLabel string
}

// DefaultSelectors returns the standard class selectors:
// ".starting", ".progressbar", ".progressbar-indicator" and ".statuslabel".
func DefaultSelectors() Selectors {
	d := page.DefaultSelectors()
	return Selectors{
		Starting:    d.Starting,
		ProgressBar: d.ProgressBar,
		Indicator:   d.Indicator,
		StatusLabel: d.StatusLabel,
	}
}

func (s Selectors) toPage() page.Selectors {
	return page.Selectors{
		Starting:    s.Starting,
		ProgressBar: s.ProgressBar,
		Indicator:   s.Indicator,
		StatusLabel: s.StatusLabel,
	}
}

// Job is a job discovered on the page.
type Job struct {
	// Index is the job's position on the page.
	Index int

	// ID is the value of the id attribute on the starting marker.
	ID string

	// URL is the status endpoint polled for this job.
	URL string

	// Width, Label and Status are the values currently displayed.
	Width  string
	Label  string
	Status string
}

// BackoffStrategy selects how a job whose polls fail is re-polled.
type BackoffStrategy string

const (
	// BackoffFixed re-polls a failing job on the next tick.
	BackoffFixed BackoffStrategy = "fixed"

	// BackoffExponential doubles the wait after each consecutive failure,
	// starting at the polling interval.
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy controls how failed polls are retried.
//
// The zero value retries on every tick forever, which matches a plain
// poll-every-interval loop.
type RetryPolicy struct {
	// Backoff is the backoff strategy. Empty means [BackoffFixed].
	Backoff BackoffStrategy

	// MaxFailures stops polling a job after this many consecutive failures.
	// Zero means never give up.
	MaxFailures uint64

	// MaxBackoff caps exponential waits. Zero means 30 seconds.
	MaxBackoff time.Duration
}

func (r RetryPolicy) toPoller() poller.RetryPolicy {
	strategy := poller.BackoffFixed
	if r.Backoff == BackoffExponential {
		strategy = poller.BackoffExponential
	}
	return poller.RetryPolicy{
		Strategy:    strategy,
		MaxFailures: r.MaxFailures,
		MaxBackoff:  r.MaxBackoff,
	}
}

// JobUpdate holds the outcome of one applied poll of a job.
//
// JobUpdate is passed to callbacks registered with [WithUpdateCallback].
// Results superseded by a newer poll of the same job are never delivered.
type JobUpdate struct {
	// Index is the job's position on the page.
	Index int

	// ID is the job id read from the page.
	ID string

	// URL is the status endpoint that was polled.
	URL string

	// State is the job's state after this poll.
	State State

	// Reported is true when the response carried a truthy percentage.
	Reported bool

	// Percentage is the reported percentage as displayed, e.g. "37".
	Percentage string

	// Status is the reported status text, or nil when absent.
	Status *string

	// Failures is the job's consecutive failure count.
	Failures int

	// Exhausted is true when polling gave up on the job.
	Exhausted bool

	// Reload is true when this poll completed the job and scheduled a reload.
	Reload bool

	// Latency is the time taken to complete the HTTP request.
	Latency time.Duration

	// CheckedAt is the timestamp when the poll completed.
	CheckedAt time.Time

	// Error contains any error that made this poll fail.
	Error error

	// RawResponse contains the HTTP response body, limited to 1MB.
	RawResponse []byte

	// StatusCode is the HTTP status code returned by the endpoint.
	// Zero if the request failed before receiving a response.
	StatusCode int
}
