package msgsync

import (
	"time"
)

// streamQueue holds the pending events of one stream in arrival order.
// It is bounded by capacity; pushing onto a full queue evicts the oldest arrival.
// Not safe for concurrent use; the Synchronizer serializes access.
type streamQueue[T any] struct {
	capacity int
	events   []Event[T]
}

func newStreamQueue[T any](capacity int) *streamQueue[T] {
	return &streamQueue[T]{
		capacity: capacity,
		events:   make([]Event[T], 0, capacity),
	}
}

// push appends ev and returns the events evicted to stay within capacity.
func (q *streamQueue[T]) push(ev Event[T]) []Event[T] {
	q.events = append(q.events, ev)
	over := len(q.events) - q.capacity
	if over <= 0 {
		return nil
	}
	evicted := make([]Event[T], over)
	copy(evicted, q.events[:over])
	q.events = append(q.events[:0], q.events[over:]...)
	return evicted
}

// snapshot returns a copy of the current contents.
func (q *streamQueue[T]) snapshot() []Event[T] {
	out := make([]Event[T], len(q.events))
	copy(out, q.events)
	return out
}

func (q *streamQueue[T]) len() int {
	return len(q.events)
}

// indexOf returns the position of the event with the given sequence, or -1.
func (q *streamQueue[T]) indexOf(seq uint64) int {
	for i := range q.events {
		if q.events[i].Seq == seq {
			return i
		}
	}
	return -1
}

// remove deletes the event with the given sequence number.
func (q *streamQueue[T]) remove(seq uint64) (Event[T], bool) {
	i := q.indexOf(seq)
	if i < 0 {
		return Event[T]{}, false
	}
	ev := q.events[i]
	q.events = append(q.events[:i], q.events[i+1:]...)
	return ev, true
}

// evictThrough removes the event with the given sequence and everything
// that arrived before it. It returns the removed events in arrival order.
func (q *streamQueue[T]) evictThrough(seq uint64) []Event[T] {
	i := q.indexOf(seq)
	if i < 0 {
		return nil
	}
	removed := make([]Event[T], i+1)
	copy(removed, q.events[:i+1])
	q.events = append(q.events[:0], q.events[i+1:]...)
	return removed
}

// evictOlderThan removes every event stamped strictly before stamp.
func (q *streamQueue[T]) evictOlderThan(stamp time.Time) []Event[T] {
	var removed []Event[T]
	kept := q.events[:0]
	for _, ev := range q.events {
		if ev.Stamp.Before(stamp) {
			removed = append(removed, ev)
			continue
		}
		kept = append(kept, ev)
	}
	q.events = kept
	return removed
}
