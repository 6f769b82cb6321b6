package msgsync

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/msgsync/pkg/msgsync/observability"
)

// DefaultQueueSize is used when WithQueueSize is not given.
const DefaultQueueSize = 10

// settings holds the construction-time configuration of a Synchronizer.
type settings struct {
	name            string
	queueSize       int
	slop            time.Duration
	policy          Policy
	prune           Prune
	allowHeaderless bool
	headerless      []int
	clock           Clock
	logger          *slog.Logger
	metricsEnabled  bool
	metrics         observability.MetricsRecorder
	tracingEnabled  bool
	spans           observability.SpanManager
	onConsumerError func(error)
}

// defaultSettings returns the default configuration.
func defaultSettings() settings {
	return settings{
		queueSize: DefaultQueueSize,
		policy:    PolicyApproximate,
		prune:     PruneMatched,
		clock:     SystemClock{},
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
	}
}

// Option configures a Synchronizer.
type Option func(*settings)

// WithQueueSize bounds each stream queue. Default: 10.
//
// Under PolicyExact the bound applies to the number of distinct pending
// stamps. Values below 1 make New fail with ErrInvalidQueueSize.
func WithQueueSize(n int) Option {
	return func(s *settings) {
		s.queueSize = n
	}
}

// WithSlop sets the largest stamp spread accepted in one tuple.
// Default: 0 (stamps must be equal). Ignored by PolicyExact.
func WithSlop(d time.Duration) Option {
	return func(s *settings) {
		s.slop = d
	}
}

// WithPolicy selects approximate or exact matching. Default: PolicyApproximate.
func WithPolicy(p Policy) Option {
	return func(s *settings) {
		s.policy = p
	}
}

// WithPrune selects which unmatched events are discarded alongside a match
// under PolicyApproximate. Default: PruneMatched.
func WithPrune(p Prune) Option {
	return func(s *settings) {
		s.prune = p
	}
}

// WithAllowHeaderless permits headerless streams and AddHeaderless.
func WithAllowHeaderless(allow bool) Option {
	return func(s *settings) {
		s.allowHeaderless = allow
	}
}

// WithHeaderless marks streams whose events are stamped with the
// observation time, ignoring any timestamp passed to Add.
// Requires WithAllowHeaderless(true).
func WithHeaderless(streams ...int) Option {
	return func(s *settings) {
		s.headerless = append(s.headerless, streams...)
	}
}

// WithClock sets the clock used to stamp headerless events and record
// receipt times. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithName names the synchronizer in logs, metrics, and spans.
// Default: "sync-" followed by a short random ID.
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// WithLogger sets a structured logger. Logs include a sync field.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	sync, err := msgsync.New[Frame](2, msgsync.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics.
//
// Metrics recorded:
//   - msgsync.events.received (counter)
//   - msgsync.events.rejected (counter)
//   - msgsync.events.dropped (counter)
//   - msgsync.tuples.matched (counter)
//   - msgsync.tuple.spread_ms (histogram)
//   - msgsync.dispatch.latency_ms (histogram)
//   - msgsync.consumer.errors (counter)
func WithMetrics(enabled bool) Option {
	return func(s *settings) {
		s.metricsEnabled = enabled
	}
}

// WithTracing enables OpenTelemetry tracing.
// Each insertion produces a msgsync.insert span; matched tuples and drops
// are recorded as span events.
func WithTracing(enabled bool) Option {
	return func(s *settings) {
		s.tracingEnabled = enabled
	}
}

// WithConsumerErrorHandler sets a function called with every *ConsumerError
// or *PanicError raised while dispatching. It runs synchronously.
func WithConsumerErrorHandler(fn func(error)) Option {
	return func(s *settings) {
		s.onConsumerError = fn
	}
}
