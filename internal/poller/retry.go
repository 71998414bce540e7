package poller

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// BackoffStrategy selects how a failing job is re-polled.
type BackoffStrategy string

const (
	// BackoffFixed re-polls a failing job on the very next tick.
	BackoffFixed BackoffStrategy = "fixed"

	// BackoffExponential doubles the wait after each consecutive failure,
	// starting at the polling interval and capped at MaxBackoff.
	BackoffExponential BackoffStrategy = "exponential"
)

const defaultMaxBackoff = 30 * time.Second

// RetryPolicy controls how the scheduler reacts to failed polls.
//
// The zero value retries every tick forever.
type RetryPolicy struct {
	// Strategy is the backoff strategy. Empty means BackoffFixed.
	Strategy BackoffStrategy

	// MaxFailures is the number of consecutive failures after which a job
	// is no longer polled. Zero means never give up.
	MaxFailures uint64

	// MaxBackoff caps exponential waits. Zero means 30s.
	MaxBackoff time.Duration
}

// newBackoff builds a fresh go-retry backoff for one job.
func (p RetryPolicy) newBackoff(interval time.Duration) retry.Backoff {
	var b retry.Backoff
	switch p.Strategy {
	case BackoffExponential:
		maxBackoff := p.MaxBackoff
		if maxBackoff <= 0 {
			maxBackoff = defaultMaxBackoff
		}
		b = retry.WithCappedDuration(maxBackoff, retry.NewExponential(interval))
	default:
		b = retry.NewConstant(interval)
	}

	if p.MaxFailures > 0 {
		// the failure that exhausts the budget must stop, so allow one fewer retry
		b = retry.WithMaxRetries(p.MaxFailures-1, b)
	}
	return b
}

// retryState tracks consecutive failures for a single job.
type retryState struct {
	policy    RetryPolicy
	interval  time.Duration
	backoff   retry.Backoff
	failures  int
	nextDue   time.Time
	exhausted bool
}

func newRetryState(policy RetryPolicy, interval time.Duration) *retryState {
	return &retryState{
		policy:   policy,
		interval: interval,
		backoff:  policy.newBackoff(interval),
	}
}

// success clears the failure streak and restarts the backoff sequence.
func (r *retryState) success() {
	r.failures = 0
	r.nextDue = time.Time{}
	r.backoff = r.policy.newBackoff(r.interval)
}

// failure records a failed poll of the tick that started at tickStart.
func (r *retryState) failure(tickStart time.Time) {
	r.failures++
	wait, stop := r.backoff.Next()
	if stop {
		r.exhausted = true
		return
	}
	r.nextDue = tickStart.Add(wait)
}

// due reports whether the job should be polled on a tick starting at now.
// Half an interval of slack absorbs ticker jitter.
func (r *retryState) due(now time.Time) bool {
	if r.exhausted {
		return false
	}
	return !now.Add(r.interval / 2).Before(r.nextDue)
}
