package msgsync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/msgsync/pkg/msgsync/observability"
)

// Synchronizer aligns events from a fixed number of streams into tuples.
//
// Each Add runs insert, match search, eviction, and dispatch as one step
// under the synchronizer's mutex, so concurrent producers are serialized.
// Consumers run on the inserting goroutine while that mutex is held: they
// must return promptly and must not call Add, AddHeaderless or QueueLen on
// the same synchronizer. They may call Register, Unregister and Stats.
type Synchronizer[T any] struct {
	name    string
	streams int
	cfg     settings
	sources []StampSource
	logger  *slog.Logger

	mu     sync.Mutex
	seq    uint64
	policy matchPolicy[T]

	received atomic.Uint64
	rejected atomic.Uint64
	matched  atomic.Uint64
	dropped  atomic.Uint64

	disp dispatcher[T]
}

// Stats counts what a synchronizer has done since construction.
type Stats struct {
	Received uint64
	Rejected uint64
	Matched  uint64
	Dropped  uint64
}

// New creates a synchronizer for the given number of streams.
//
// Construction fails with a *ConfigError wrapping ErrTooFewStreams,
// ErrInvalidQueueSize, ErrNegativeSlop, ErrUnknownPolicy, ErrStreamOutOfRange
// or ErrHeaderlessNotAllowed.
//
// Example:
//
//	sync, err := msgsync.New[Reading](2,
//	    msgsync.WithQueueSize(10),
//	    msgsync.WithSlop(100*time.Millisecond))
func New[T any](streams int, opts ...Option) (*Synchronizer[T], error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validate(streams, &cfg); err != nil {
		return nil, err
	}

	sources := make([]StampSource, streams)
	for _, s := range cfg.headerless {
		sources[s] = StampArrival
	}

	if cfg.name == "" {
		cfg.name = "sync-" + uuid.New().String()[:8]
	}
	if cfg.metricsEnabled {
		cfg.metrics = observability.NewMetricsRecorder(cfg.name)
	}
	if cfg.tracingEnabled {
		cfg.spans = observability.NewSpanManager()
	}

	s := &Synchronizer[T]{
		name:    cfg.name,
		streams: streams,
		cfg:     cfg,
		sources: sources,
		logger:  observability.EnrichLogger(cfg.logger, cfg.name),
	}
	switch cfg.policy {
	case PolicyExact:
		s.policy = newExactPolicy[T](streams, cfg.queueSize)
	default:
		s.policy = newApproximatePolicy[T](streams, cfg.queueSize, cfg.slop, cfg.prune)
	}

	observability.LogSynchronizerCreated(s.logger, streams, cfg.policy.String(), cfg.queueSize, cfg.slop)
	return s, nil
}

func validate(streams int, cfg *settings) error {
	if streams < 2 {
		return &ConfigError{Field: "streams", Err: ErrTooFewStreams}
	}
	if cfg.queueSize < 1 {
		return &ConfigError{Field: "queue_size", Err: ErrInvalidQueueSize}
	}
	if cfg.slop < 0 {
		return &ConfigError{Field: "slop", Err: ErrNegativeSlop}
	}
	if cfg.policy != PolicyApproximate && cfg.policy != PolicyExact {
		return &ConfigError{Field: "policy", Err: ErrUnknownPolicy}
	}
	for _, h := range cfg.headerless {
		if h < 0 || h >= streams {
			return &ConfigError{Field: "headerless", Err: ErrStreamOutOfRange}
		}
	}
	if len(cfg.headerless) > 0 && !cfg.allowHeaderless {
		return &ConfigError{Field: "headerless", Err: ErrHeaderlessNotAllowed}
	}
	return nil
}

// Name returns the synchronizer's name.
func (s *Synchronizer[T]) Name() string {
	return s.name
}

// Streams returns the number of streams.
func (s *Synchronizer[T]) Streams() int {
	return s.streams
}

// StampSource reports how events on stream are stamped.
func (s *Synchronizer[T]) StampSource(stream int) StampSource {
	if stream < 0 || stream >= s.streams {
		return StampHeader
	}
	return s.sources[stream]
}

// Register adds a consumer. Consumers receive every tuple dispatched after
// registration, in registration order.
func (s *Synchronizer[T]) Register(fn Callback[T]) Handle {
	return s.disp.register(fn)
}

// RegisterDrop adds an observer for events that leave a queue unmatched.
func (s *Synchronizer[T]) RegisterDrop(fn DropCallback[T]) Handle {
	return s.disp.registerDrop(fn)
}

// Unregister removes a consumer or drop observer. It reports whether the
// handle was registered.
func (s *Synchronizer[T]) Unregister(h Handle) bool {
	return s.disp.unregister(h)
}

// Add inserts an event stamped by its producer. On a headerless stream the
// stamp is replaced by the observation time.
func (s *Synchronizer[T]) Add(ctx context.Context, stream int, stamp time.Time, payload T) error {
	return s.insert(ctx, "add", stream, stamp, false, payload)
}

// AddHeaderless inserts an event without a timestamp; it is stamped with the
// observation time. Requires WithAllowHeaderless(true).
func (s *Synchronizer[T]) AddHeaderless(ctx context.Context, stream int, payload T) error {
	return s.insert(ctx, "add_headerless", stream, time.Time{}, true, payload)
}

// QueueLen returns the number of pending events for stream.
func (s *Synchronizer[T]) QueueLen(stream int) int {
	if stream < 0 || stream >= s.streams {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.queueLen(stream)
}

// Stats returns a snapshot of the counters.
func (s *Synchronizer[T]) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Rejected: s.rejected.Load(),
		Matched:  s.matched.Load(),
		Dropped:  s.dropped.Load(),
	}
}

func (s *Synchronizer[T]) insert(ctx context.Context, op string, stream int, stamp time.Time, headerless bool, payload T) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if stream < 0 || stream >= s.streams {
		return s.reject(ctx, &InsertError{Stream: stream, Op: op, Err: ErrStreamOutOfRange})
	}
	if headerless && !s.cfg.allowHeaderless {
		return s.reject(ctx, &InsertError{Stream: stream, Op: op, Err: ErrHeaderlessNotAllowed})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.clock.Now()
	source := StampHeader
	if headerless || s.sources[stream] == StampArrival {
		stamp = now
		source = StampArrival
	}
	s.seq++
	ev := Event[T]{
		Stream:   stream,
		Stamp:    stamp,
		Received: now,
		Source:   source,
		Seq:      s.seq,
		Payload:  payload,
	}

	ctx, span := s.cfg.spans.StartInsertSpan(ctx, s.name, stream, ev.Seq)
	defer func() {
		s.cfg.spans.EndSpanWithError(span, err)
	}()

	s.received.Add(1)
	s.cfg.metrics.RecordReceived(ctx, stream, source.String())

	for _, o := range s.policy.insert(ev) {
		if o.isDrop() {
			s.reportDrop(ctx, o.drop, o.reason)
			continue
		}
		s.dispatch(ctx, Tuple[T]{ID: uuid.New().String(), Events: o.tuple})
	}
	return nil
}

func (s *Synchronizer[T]) reject(ctx context.Context, err *InsertError) error {
	s.rejected.Add(1)

	s.cfg.metrics.RecordRejected(ctx, err.Stream)
	observability.LogInsertRejected(s.logger, err.Stream, err)
	return err
}

func (s *Synchronizer[T]) reportDrop(ctx context.Context, ev Event[T], reason DropReason) {
	s.dropped.Add(1)
	s.cfg.metrics.RecordDropped(ctx, ev.Stream, string(reason))
	s.cfg.spans.AddSpanEvent(ctx, "event.dropped",
		attribute.Int("event.stream", ev.Stream),
		attribute.Int64("event.seq", int64(ev.Seq)),
		attribute.String("drop.reason", string(reason)),
	)
	observability.LogEventDropped(s.logger, ev.Stream, ev.Seq, string(reason))

	for _, err := range s.disp.drop(ev, reason) {
		s.consumerFailed(ctx, err)
	}
}

func (s *Synchronizer[T]) dispatch(ctx context.Context, t Tuple[T]) {
	s.matched.Add(1)
	spread := t.Spread()
	s.cfg.spans.AddSpanEvent(ctx, "tuple.matched",
		attribute.String("tuple.id", t.ID),
		attribute.Int64("tuple.spread_ns", int64(spread)),
	)
	observability.LogTupleMatched(s.logger, t.ID, spread, s.disp.count())

	done := observability.TimedOperation()
	errs := s.disp.dispatch(ctx, t)
	s.cfg.metrics.RecordMatched(ctx, spread, done())

	for _, err := range errs {
		s.consumerFailed(ctx, err)
	}
}

func (s *Synchronizer[T]) consumerFailed(ctx context.Context, err error) {
	var (
		handle   Handle
		tupleID  string
		panicked bool
	)
	switch e := err.(type) {
	case *ConsumerError:
		handle, tupleID = e.Handle, e.TupleID
	case *PanicError:
		handle, tupleID, panicked = e.Handle, e.TupleID, true
	}
	s.cfg.metrics.RecordConsumerError(ctx, panicked)
	observability.LogConsumerError(s.logger, tupleID, uint64(handle), err)
	if s.cfg.onConsumerError != nil {
		s.cfg.onConsumerError(err)
	}
}
