/*
Package msgsync aligns events from independent streams into tuples of
mutually close timestamps.

# Overview

Producers such as sensors sample at their own, jittery rates. Downstream
logic usually wants one event from every stream, all taken at about the
same time. A Synchronizer keeps a bounded queue per stream, searches the
queues after every insertion, and hands each matched tuple to the
registered consumers.

Matching does not depend on arrival order: events may arrive late or
shuffled, and the same tuples come out once all of them are present.

# Basic Usage

	type Reading struct {
	    Sensor string
	    Value  float64
	}

	sync, err := msgsync.New[Reading](2,
	    msgsync.WithQueueSize(10),
	    msgsync.WithSlop(100*time.Millisecond))
	if err != nil {
	    log.Fatal(err)
	}

	sync.Register(msgsync.PayloadFunc(func(r ...Reading) {
	    fmt.Println(r[0].Value, r[1].Value)
	}))

	// From each stream adapter:
	err = sync.Add(ctx, 0, stamp, reading)

# Matching

Under PolicyApproximate every queued event is tried as a pivot. For each
other stream the event closest in time to the pivot is chosen, and the
pivot succeeds when the chosen stamps span at most the slop. Among the
successful pivots the tightest tuple wins; ties go to the earliest pivot
stamp, then the lowest pivot stream, then the earliest pivot arrival.
FindApproximate exposes the search as a pure function.

PolicyExact only pairs identical stamps. Its queue size bounds the number of
distinct pending stamps, and completing a set discards all older sets.

# Headerless Streams

Streams whose events carry no timestamp are stamped with the observation
time. Mark them with WithHeaderless (which requires WithAllowHeaderless),
or call AddHeaderless:

	sync, err := msgsync.New[Frame](2,
	    msgsync.WithAllowHeaderless(true),
	    msgsync.WithHeaderless(1),
	    msgsync.WithSlop(10*time.Second))

# Eviction

A full queue evicts its oldest arrival. Matched events leave their queues;
WithPrune also discards older unmatched events. Every unmatched event that
leaves a queue is reported to drop observers:

	sync.RegisterDrop(func(ev msgsync.Event[Reading], reason msgsync.DropReason) {
	    log.Printf("dropped stream %d seq %d: %s", ev.Stream, ev.Seq, reason)
	})

# Error Handling

Rejected inserts return *InsertError and never change the queues:

	var insErr *msgsync.InsertError
	if errors.As(err, &insErr) && errors.Is(err, msgsync.ErrStreamOutOfRange) {
	    ...
	}

Consumer errors and panics are isolated: each is wrapped in *ConsumerError
or *PanicError, logged, counted, and passed to WithConsumerErrorHandler, and
the remaining consumers still receive the tuple.

# Observability

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	sync, err := msgsync.New[Reading](2,
	    msgsync.WithLogger(logger),
	    msgsync.WithMetrics(true),
	    msgsync.WithTracing(true),
	    msgsync.WithName("imu-gps"))

Logs include structured fields: sync, stream, seq, tuple_id, spread_ms, reason.
OpenTelemetry metrics: msgsync.events.received, msgsync.tuples.matched, etc.
OpenTelemetry tracing: one msgsync.insert span per insertion.

# Thread Safety

  - Synchronizer IS safe for concurrent use; inserts are serialized
  - Consumers run synchronously under the synchronizer's lock
  - Register and Unregister may be called from any goroutine, including consumers

# Subpackages

  - config: YAML/JSON configuration and MSGSYNC_* environment overrides
  - observability: Logging, metrics, and tracing helpers
  - record: Tuple and drop recording (memory, SQLite)
*/
package msgsync
