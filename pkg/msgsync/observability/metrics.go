package observability

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records synchronizer metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordReceived records an event accepted into a queue.
	RecordReceived(ctx context.Context, stream int, source string)

	// RecordRejected records an event refused before reaching a queue.
	RecordRejected(ctx context.Context, stream int)

	// RecordDropped records an unmatched event leaving its queue.
	RecordDropped(ctx context.Context, stream int, reason string)

	// RecordMatched records a dispatched tuple, its spread, and how long
	// its consumers took.
	RecordMatched(ctx context.Context, spread, dispatch time.Duration)

	// RecordConsumerError records a consumer that returned an error or panicked.
	RecordConsumerError(ctx context.Context, panicked bool)
}

// instruments holds the OTel instruments shared by every recorder.
type instruments struct {
	received       metric.Int64Counter
	rejected       metric.Int64Counter
	dropped        metric.Int64Counter
	matched        metric.Int64Counter
	spread         metric.Float64Histogram
	dispatchLat    metric.Float64Histogram
	consumerErrors metric.Int64Counter
}

// otelMetrics implements MetricsRecorder for one named synchronizer.
type otelMetrics struct {
	inst     *instruments
	syncAttr attribute.KeyValue
}

var (
	defaultInstruments     *instruments
	defaultInstrumentsOnce sync.Once
	defaultInstrumentsErr  error
)

// getDefaultInstruments lazily creates the instruments on first call.
func getDefaultInstruments() (*instruments, error) {
	defaultInstrumentsOnce.Do(func() {
		defaultInstruments, defaultInstrumentsErr = newInstruments()
	})
	return defaultInstruments, defaultInstrumentsErr
}

// newInstruments creates instruments from the global meter provider.
func newInstruments() (*instruments, error) {
	meter := otel.Meter("msgsync")

	received, err := meter.Int64Counter("msgsync.events.received",
		metric.WithDescription("Number of events accepted into a stream queue"),
	)
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter("msgsync.events.rejected",
		metric.WithDescription("Number of events rejected before queueing"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter("msgsync.events.dropped",
		metric.WithDescription("Number of unmatched events evicted from a queue"),
	)
	if err != nil {
		return nil, err
	}

	matched, err := meter.Int64Counter("msgsync.tuples.matched",
		metric.WithDescription("Number of tuples dispatched"),
	)
	if err != nil {
		return nil, err
	}

	spread, err := meter.Float64Histogram("msgsync.tuple.spread_ms",
		metric.WithDescription("Timestamp spread of dispatched tuples in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dispatchLat, err := meter.Float64Histogram("msgsync.dispatch.latency_ms",
		metric.WithDescription("Time spent running consumers for one tuple in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	consumerErrors, err := meter.Int64Counter("msgsync.consumer.errors",
		metric.WithDescription("Number of consumer failures"),
	)
	if err != nil {
		return nil, err
	}

	return &instruments{
		received:       received,
		rejected:       rejected,
		dropped:        dropped,
		matched:        matched,
		spread:         spread,
		dispatchLat:    dispatchLat,
		consumerErrors: consumerErrors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry and
// tags every measurement with sync=syncName.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder(syncName string) MetricsRecorder {
	inst, err := getDefaultInstruments()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return newOtelMetrics(inst, syncName)
}

func newOtelMetrics(inst *instruments, syncName string) *otelMetrics {
	return &otelMetrics{
		inst:     inst,
		syncAttr: attribute.String("sync", syncName),
	}
}

func streamAttr(stream int) attribute.KeyValue {
	return attribute.String("stream", strconv.Itoa(stream))
}

// RecordReceived records an accepted event.
func (m *otelMetrics) RecordReceived(ctx context.Context, stream int, source string) {
	m.inst.received.Add(ctx, 1, metric.WithAttributes(
		m.syncAttr,
		streamAttr(stream),
		attribute.String("source", source),
	))
}

// RecordRejected records a rejected event.
func (m *otelMetrics) RecordRejected(ctx context.Context, stream int) {
	m.inst.rejected.Add(ctx, 1, metric.WithAttributes(m.syncAttr, streamAttr(stream)))
}

// RecordDropped records an evicted event.
func (m *otelMetrics) RecordDropped(ctx context.Context, stream int, reason string) {
	m.inst.dropped.Add(ctx, 1, metric.WithAttributes(
		m.syncAttr,
		streamAttr(stream),
		attribute.String("reason", reason),
	))
}

// RecordMatched records a dispatched tuple.
func (m *otelMetrics) RecordMatched(ctx context.Context, spread, dispatch time.Duration) {
	attrs := metric.WithAttributes(m.syncAttr)
	m.inst.matched.Add(ctx, 1, attrs)
	m.inst.spread.Record(ctx, float64(spread)/float64(time.Millisecond), attrs)
	m.inst.dispatchLat.Record(ctx, float64(dispatch)/float64(time.Millisecond), attrs)
}

// RecordConsumerError records a consumer failure.
func (m *otelMetrics) RecordConsumerError(ctx context.Context, panicked bool) {
	m.inst.consumerErrors.Add(ctx, 1, metric.WithAttributes(
		m.syncAttr,
		attribute.Bool("panic", panicked),
	))
}
