package record

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/msgsync/pkg/msgsync"
)

// Encoder turns a payload into stored bytes.
type Encoder[T any] func(payload T) ([]byte, error)

// JSONEncoder stores payloads as JSON.
func JSONEncoder[T any](payload T) ([]byte, error) {
	return json.Marshal(payload)
}

// Recorder writes a synchronizer's tuples and drops to a Store.
//
// Example:
//
//	store, _ := record.NewSQLiteStore("tuples.db")
//	rec := record.NewRecorder[Reading](store, sync.Name(), nil)
//	rec.Attach(sync)
type Recorder[T any] struct {
	store    Store
	syncName string
	encode   Encoder[T]
	logger   *slog.Logger
	failures atomic.Uint64
}

// NewRecorder creates a recorder. A nil encode stores payloads as JSON.
func NewRecorder[T any](store Store, syncName string, encode Encoder[T]) *Recorder[T] {
	if encode == nil {
		encode = JSONEncoder[T]
	}
	return &Recorder[T]{store: store, syncName: syncName, encode: encode}
}

// WithLogger sets the logger used for drop recording failures.
func (r *Recorder[T]) WithLogger(logger *slog.Logger) *Recorder[T] {
	r.logger = logger
	return r
}

// Attach registers the recorder as a consumer and a drop observer of s.
func (r *Recorder[T]) Attach(s *msgsync.Synchronizer[T]) (tuples, drops msgsync.Handle) {
	return s.Register(r.Consumer()), s.RegisterDrop(r.DropObserver())
}

// Failures returns how many records could not be written.
func (r *Recorder[T]) Failures() uint64 {
	return r.failures.Load()
}

// Consumer returns a callback that stores every tuple it receives.
// Store failures are returned so the synchronizer reports them.
func (r *Recorder[T]) Consumer() msgsync.Callback[T] {
	return func(ctx context.Context, t msgsync.Tuple[T]) error {
		rec := TupleRecord{
			ID:        t.ID,
			Sync:      r.syncName,
			MatchedAt: time.Now(),
			Spread:    t.Spread(),
			Events:    make([]EventRecord, 0, len(t.Events)),
		}
		for _, ev := range t.Events {
			er, err := r.eventRecord(ev)
			if err != nil {
				r.failures.Add(1)
				return err
			}
			rec.Events = append(rec.Events, er)
		}
		if err := r.store.SaveTuple(ctx, rec); err != nil {
			r.failures.Add(1)
			return fmt.Errorf("record tuple %s: %w", t.ID, err)
		}
		return nil
	}
}

// DropObserver returns a drop callback that stores every dropped event.
// Drop callbacks cannot fail, so store errors are logged and counted.
func (r *Recorder[T]) DropObserver() msgsync.DropCallback[T] {
	return func(ev msgsync.Event[T], reason msgsync.DropReason) {
		er, err := r.eventRecord(ev)
		if err == nil {
			err = r.store.SaveDrop(context.Background(), DropRecord{
				Sync:      r.syncName,
				Reason:    string(reason),
				DroppedAt: time.Now(),
				Event:     er,
			})
		}
		if err != nil {
			r.failures.Add(1)
			if r.logger != nil {
				r.logger.Error("record drop failed",
					slog.Int("stream", ev.Stream),
					slog.Uint64("seq", ev.Seq),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (r *Recorder[T]) eventRecord(ev msgsync.Event[T]) (EventRecord, error) {
	payload, err := r.encode(ev.Payload)
	if err != nil {
		return EventRecord{}, fmt.Errorf("encode payload of stream %d seq %d: %w", ev.Stream, ev.Seq, err)
	}
	return EventRecord{
		Stream:   ev.Stream,
		Seq:      ev.Seq,
		Stamp:    ev.Stamp,
		Received: ev.Received,
		Source:   ev.Source.String(),
		Payload:  payload,
	}, nil
}
