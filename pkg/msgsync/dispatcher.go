package msgsync

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Callback consumes a matched tuple. A returned error is reported but never
// stops delivery to the other consumers.
type Callback[T any] func(ctx context.Context, t Tuple[T]) error

// DropCallback observes an unmatched event leaving its queue.
type DropCallback[T any] func(ev Event[T], reason DropReason)

// PayloadFunc adapts a function taking one payload per stream.
//
// Example:
//
//	sync.Register(msgsync.PayloadFunc(func(msgs ...Reading) {
//	    fuse(msgs[0], msgs[1])
//	}))
func PayloadFunc[T any](fn func(payloads ...T)) Callback[T] {
	return func(_ context.Context, t Tuple[T]) error {
		fn(t.Payloads()...)
		return nil
	}
}

// Handle identifies a registration. The zero Handle is never issued.
type Handle uint64

type consumerEntry[T any] struct {
	handle Handle
	fn     Callback[T]
}

type dropEntry[T any] struct {
	handle Handle
	fn     DropCallback[T]
}

// dispatcher holds consumers in registration order.
// Registration is safe from any goroutine, including from inside a consumer.
type dispatcher[T any] struct {
	mu        sync.RWMutex
	next      Handle
	consumers []consumerEntry[T]
	droppers  []dropEntry[T]
}

func (d *dispatcher[T]) register(fn Callback[T]) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.consumers = append(d.consumers, consumerEntry[T]{handle: d.next, fn: fn})
	return d.next
}

func (d *dispatcher[T]) registerDrop(fn DropCallback[T]) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.droppers = append(d.droppers, dropEntry[T]{handle: d.next, fn: fn})
	return d.next
}

func (d *dispatcher[T]) unregister(h Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, c := range d.consumers {
		if c.handle == h {
			d.consumers = append(d.consumers[:i:i], d.consumers[i+1:]...)
			return true
		}
	}
	for i, c := range d.droppers {
		if c.handle == h {
			d.droppers = append(d.droppers[:i:i], d.droppers[i+1:]...)
			return true
		}
	}
	return false
}

func (d *dispatcher[T]) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.consumers)
}

// dispatch delivers t to every consumer in registration order and returns
// the failures, one per failing consumer.
func (d *dispatcher[T]) dispatch(ctx context.Context, t Tuple[T]) []error {
	d.mu.RLock()
	consumers := d.consumers
	d.mu.RUnlock()

	var errs []error
	for _, c := range consumers {
		if err := deliver(ctx, c, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// deliver runs one consumer, converting errors and panics.
func deliver[T any](ctx context.Context, c consumerEntry[T], t Tuple[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Handle:  c.handle,
				TupleID: t.ID,
				Value:   r,
				Stack:   string(debug.Stack()),
			}
		}
	}()

	if cerr := c.fn(ctx, t); cerr != nil {
		return &ConsumerError{Handle: c.handle, TupleID: t.ID, Err: cerr}
	}
	return nil
}

// drop notifies drop observers. A panicking observer is skipped.
func (d *dispatcher[T]) drop(ev Event[T], reason DropReason) []error {
	d.mu.RLock()
	droppers := d.droppers
	d.mu.RUnlock()

	var errs []error
	for _, c := range droppers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					errs = append(errs, &PanicError{
						Handle:  c.handle,
						TupleID: fmt.Sprintf("drop:%d", ev.Seq),
						Value:   r,
						Stack:   string(debug.Stack()),
					})
				}
			}()
			c.fn(ev, reason)
		}()
	}
	return errs
}
