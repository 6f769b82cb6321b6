// Package record persists dispatched tuples and dropped events for offline
// analysis and replay comparison.
package record

import (
	"context"
	"errors"
	"time"
)

// Store persists tuple and drop records.
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveTuple stores a dispatched tuple. The store assigns Sequence.
	SaveTuple(ctx context.Context, rec TupleRecord) error

	// SaveDrop stores a dropped event.
	SaveDrop(ctx context.Context, rec DropRecord) error

	// Tuples returns the tuples recorded for a synchronizer, ordered by Sequence.
	// Returns an empty slice (not error) if none exist.
	Tuples(ctx context.Context, syncName string) ([]TupleRecord, error)

	// Drops returns the drops recorded for a synchronizer in recording order.
	Drops(ctx context.Context, syncName string) ([]DropRecord, error)

	// DeleteSync removes every record of a synchronizer.
	// Returns nil if there are none.
	DeleteSync(ctx context.Context, syncName string) error

	// Close releases any resources (connections, files).
	Close() error
}

// EventRecord is the stored form of one event.
type EventRecord struct {
	Stream   int
	Seq      uint64
	Stamp    time.Time
	Received time.Time
	Source   string
	Payload  []byte
}

// TupleRecord is the stored form of a dispatched tuple.
type TupleRecord struct {
	ID        string
	Sync      string
	Sequence  int
	MatchedAt time.Time
	Spread    time.Duration
	Events    []EventRecord
}

// DropRecord is the stored form of a dropped event.
type DropRecord struct {
	Sync      string
	Reason    string
	DroppedAt time.Time
	Event     EventRecord
}

// Sentinel errors for store operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("record store closed")

	// ErrDuplicateTuple indicates a tuple ID was saved twice.
	ErrDuplicateTuple = errors.New("tuple already recorded")
)
