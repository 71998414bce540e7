package store

import "time"

// JobStatus is the last known state of one job on the page.
//
// JobStatus is the storage representation of a job, optimized for JSON
// serialization (used by the REST API and SSE). It is decoupled from the
// poller's internal types to allow independent evolution.
type JobStatus struct {
	// Index is the job's position on the page; it keys the store.
	Index int `json:"index"`

	// ID is the job id read from the page attribute.
	ID string `json:"id"`

	// URL is the status endpoint that is polled.
	URL string `json:"url"`

	// State is "pending", "in_progress" or "complete".
	State string `json:"state"`

	// Percentage is the last reported percentage, verbatim.
	// Empty until the job first reports progress.
	Percentage string `json:"percentage"`

	// Width is the progress bar's CSS width, e.g. "37%".
	Width string `json:"width"`

	// Label is the indicator text, e.g. "37%".
	Label string `json:"label"`

	// Status is the status label text. nil leaves the label unchanged.
	Status *string `json:"status"`

	// Failures is the number of consecutive failed polls.
	Failures int `json:"failures"`

	// Exhausted is true once polling gave up on the job.
	Exhausted bool `json:"exhausted"`

	// Error contains the message of the last failed poll.
	Error *string `json:"error"`

	// ResponseTimeMs is the request latency in milliseconds.
	ResponseTimeMs int64 `json:"response_time_ms"`

	// CheckedAt is the timestamp of the last poll. Zero before the first poll.
	CheckedAt time.Time `json:"checked_at"`
}

// EventType names the kind of [Event].
type EventType string

const (
	// EventUpdate carries a changed job.
	EventUpdate EventType = "update"

	// EventReload tells clients to reload the page.
	EventReload EventType = "reload"
)

// Event is a message delivered to subscribers.
type Event struct {
	Type EventType  `json:"type"`
	Job  *JobStatus `json:"job,omitempty"`
}

// Store defines the interface for storing and subscribing to job updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected browsers
// (e.g., via Server-Sent Events).
type Store interface {
	// Reset replaces all jobs with the given set, without notifying
	// subscribers. It is called when a page is (re)loaded.
	Reset(jobs []JobStatus)

	// Update stores a job and notifies all subscribers with an update event.
	// The job is keyed by Index, so subsequent updates replace previous values.
	Update(job JobStatus)

	// Get returns the job at index, if present.
	Get(index int) (JobStatus, bool)

	// GetAll returns all jobs ordered by index.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []JobStatus

	// Reload notifies all subscribers with a reload event.
	Reload()

	// Subscribe returns a channel that receives events.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Event

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Event)
}
