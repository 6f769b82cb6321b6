package msgsync

import (
	"time"
)

// StampSource says where an event's timestamp comes from.
type StampSource int

const (
	// StampHeader means the producer supplied the timestamp.
	StampHeader StampSource = iota
	// StampArrival means the synchronizer stamped the event with its
	// observation time. Streams configured as headerless use this source.
	StampArrival
)

// String returns the source name used in logs and records.
func (s StampSource) String() string {
	switch s {
	case StampHeader:
		return "header"
	case StampArrival:
		return "arrival"
	default:
		return "unknown"
	}
}

// Event is one message accepted into a stream queue.
// Events are immutable once the synchronizer creates them.
type Event[T any] struct {
	// Stream is the index of the stream the event arrived on.
	Stream int

	// Stamp is the time used for matching.
	Stamp time.Time

	// Received is when the synchronizer observed the event.
	Received time.Time

	// Source records whether Stamp came from the producer or from arrival.
	Source StampSource

	// Seq is the synchronizer-wide arrival sequence number (1 = first event).
	Seq uint64

	// Payload is the opaque message.
	Payload T
}

// Tuple is a set of temporally aligned events, one per stream.
// Events[i] always came from stream i.
type Tuple[T any] struct {
	// ID uniquely identifies the dispatched tuple.
	ID string

	// Events holds one event per stream in stream order.
	Events []Event[T]
}

// Payloads returns the payloads positionally: stream 0 first.
func (t Tuple[T]) Payloads() []T {
	out := make([]T, len(t.Events))
	for i, ev := range t.Events {
		out[i] = ev.Payload
	}
	return out
}

// Earliest returns the smallest stamp in the tuple.
func (t Tuple[T]) Earliest() time.Time {
	var lo time.Time
	for i, ev := range t.Events {
		if i == 0 || ev.Stamp.Before(lo) {
			lo = ev.Stamp
		}
	}
	return lo
}

// Latest returns the largest stamp in the tuple.
func (t Tuple[T]) Latest() time.Time {
	var hi time.Time
	for i, ev := range t.Events {
		if i == 0 || ev.Stamp.After(hi) {
			hi = ev.Stamp
		}
	}
	return hi
}

// Spread is the distance between the earliest and latest stamp.
func (t Tuple[T]) Spread() time.Duration {
	if len(t.Events) == 0 {
		return 0
	}
	return t.Latest().Sub(t.Earliest())
}

// DropReason explains why an unmatched event left its queue.
type DropReason string

// Drop reasons.
const (
	// DropCapacity means the queue was full and the oldest event was evicted.
	DropCapacity DropReason = "capacity"
	// DropPruned means a newer tuple was dispatched and the event could no
	// longer pair with anything.
	DropPruned DropReason = "pruned"
	// DropSuperseded means an exact-time set received a second event for the
	// same stream and stamp; the earlier one was replaced.
	DropSuperseded DropReason = "superseded"
)
