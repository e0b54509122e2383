package analytics

import (
	"sync"
)

// EventBuffer is the in-memory queue of raw metric events shared between
// producers (Append) and the flush loop (Drain). The handoff is atomic: an
// event drained into a batch is never also visible in the live buffer.
//
// The buffer is bounded: once the limit is reached, Requeue and Append drop
// the oldest events and report how many were discarded. Without the bound a
// prolonged store outage would grow the buffer without limit.
type EventBuffer struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewEventBuffer creates a buffer that holds at most limit events.
// A limit <= 0 means unbounded.
func NewEventBuffer(limit int) *EventBuffer {
	return &EventBuffer{limit: limit}
}

// Append adds an event to the end of the buffer. Returns the number of old
// events dropped to stay within the limit (0 or 1).
func (b *EventBuffer) Append(e Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, e)
	return b.truncateLocked()
}

// Drain removes and returns every buffered event. Events arriving after the
// drain start a fresh buffer; no event can appear in two drained batches.
func (b *EventBuffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.events
	b.events = nil
	return batch
}

// Requeue pushes a failed batch back to the front of the buffer so the next
// flush retries it ahead of newer events, preserving original arrival order.
// Returns the number of events dropped to stay within the limit.
func (b *EventBuffer) Requeue(batch []Event) int {
	if len(batch) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	merged := make([]Event, 0, len(batch)+len(b.events))
	merged = append(merged, batch...)
	merged = append(merged, b.events...)
	b.events = merged
	return b.truncateLocked()
}

// truncateLocked drops the oldest events beyond the limit.
// Caller must hold the mutex.
func (b *EventBuffer) truncateLocked() int {
	if b.limit <= 0 || len(b.events) <= b.limit {
		return 0
	}
	dropped := len(b.events) - b.limit
	b.events = append([]Event(nil), b.events[dropped:]...)
	return dropped
}

// Len returns the number of buffered events.
func (b *EventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
