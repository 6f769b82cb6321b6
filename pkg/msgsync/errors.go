package msgsync

import (
	"errors"
	"fmt"
)

// Sentinel errors for construction.
var (
	// ErrTooFewStreams indicates fewer than two streams were requested.
	ErrTooFewStreams = errors.New("synchronizer needs at least two streams")

	// ErrInvalidQueueSize indicates a queue size below one.
	ErrInvalidQueueSize = errors.New("queue size must be at least 1")

	// ErrNegativeSlop indicates a negative matching tolerance.
	ErrNegativeSlop = errors.New("slop must not be negative")

	// ErrUnknownPolicy indicates a policy value the synchronizer does not implement.
	ErrUnknownPolicy = errors.New("unknown match policy")
)

// Sentinel errors for inserts. Both are also possible at construction.
var (
	// ErrHeaderlessNotAllowed indicates a headerless stream or event without
	// WithAllowHeaderless.
	ErrHeaderlessNotAllowed = errors.New("headerless events not allowed")

	// ErrStreamOutOfRange indicates a stream index outside [0, streams).
	ErrStreamOutOfRange = errors.New("stream index out of range")
)

// InsertError is returned when an event is rejected.
// A rejected event never reaches a queue.
type InsertError struct {
	// Stream is the stream index the caller passed.
	Stream int
	// Op is the rejected operation ("add", "add_headerless").
	Op string
	// Err is the underlying sentinel.
	Err error
}

// Error implements the error interface.
func (e *InsertError) Error() string {
	return fmt.Sprintf("%s on stream %d: %v", e.Op, e.Stream, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *InsertError) Unwrap() error {
	return e.Err
}

// ConfigError wraps a construction failure with the offending setting.
type ConfigError struct {
	// Field names the option ("streams", "queue_size", "slop", ...).
	Field string
	// Err is the underlying sentinel.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ConsumerError wraps an error returned by a registered consumer.
type ConsumerError struct {
	// Handle identifies the consumer.
	Handle Handle
	// TupleID is the tuple being delivered.
	TupleID string
	// Err is what the consumer returned.
	Err error
}

// Error implements the error interface.
func (e *ConsumerError) Error() string {
	return fmt.Sprintf("consumer %d on tuple %s: %v", e.Handle, e.TupleID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConsumerError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a consumer.
type PanicError struct {
	// Handle identifies the consumer.
	Handle Handle
	// TupleID is the tuple being delivered.
	TupleID string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("consumer %d panicked on tuple %s: %v", e.Handle, e.TupleID, e.Value)
}
