package store

import (
	"sort"
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe mechanism
// for real-time updates. Jobs are keyed by page index, with new results
// replacing previous values.
//
// Subscribers receive events via buffered channels (buffer size 100). Update
// events are sent non-blocking; if a subscriber's buffer is full, the update
// is dropped for that subscriber to prevent blocking the entire system.
// Reload events evict the oldest buffered event instead of being dropped.
type MemoryStore struct {
	mu          sync.RWMutex
	jobs        map[int]JobStatus
	subscribers map[chan Event]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:        make(map[int]JobStatus),
		subscribers: make(map[chan Event]struct{}),
	}
}

// Reset replaces the stored jobs. Subscribers are not notified.
func (m *MemoryStore) Reset(jobs []JobStatus) {
	next := make(map[int]JobStatus, len(jobs))
	for _, j := range jobs {
		next[j.Index] = j
	}

	m.mu.Lock()
	m.jobs = next
	m.mu.Unlock()
}

// Update stores a [JobStatus] and notifies all subscribers.
//
// The job is stored using its Index as the key. All subscribers receive the
// update (unless their buffer is full).
func (m *MemoryStore) Update(job JobStatus) {
	m.mu.Lock()
	m.jobs[job.Index] = job
	m.mu.Unlock()

	m.notifySubscribers(Event{Type: EventUpdate, Job: &job})
}

// Get returns the job stored at index.
func (m *MemoryStore) Get(index int) (JobStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[index]
	return job, ok
}

// GetAll returns a snapshot of all stored jobs, ordered by index.
//
// The returned slice is a copy; modifications do not affect the store.
func (m *MemoryStore) GetAll() []JobStatus {
	m.mu.RLock()
	jobs := make([]JobStatus, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Index < jobs[j].Index })
	return jobs
}

// Reload broadcasts a reload event to all subscribers.
func (m *MemoryStore) Reload() {
	m.notifySubscribers(Event{Type: EventReload})
}

// Subscribe creates a new subscription and returns a channel for receiving events.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// events will be sent. Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// find and delete the channel (need to convert to the right type)
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (m *MemoryStore) SubscriberCount() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers)
}

// notifySubscribers sends the event to all active subscribers.
//
// This is non-blocking: if a subscriber's channel buffer is full, an update
// is dropped for that subscriber rather than blocking the update path.
func (m *MemoryStore) notifySubscribers(ev Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- ev:
			continue
		default:
		}

		if ev.Type != EventReload {
			// subscriber is slow, drop the message
			continue
		}

		// a reload supersedes whatever is queued
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
