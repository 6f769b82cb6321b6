// Package observability provides structured logging, metrics, and tracing
// for msgsync synchronizers.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds synchronizer context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "camera-lidar")
//	enriched.Info("ready") // includes sync=camera-lidar
func EnrichLogger(logger *slog.Logger, syncName string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("sync", syncName))
}

// LogSynchronizerCreated logs the effective configuration of a new synchronizer.
func LogSynchronizerCreated(logger *slog.Logger, streams int, policy string, queueSize int, slop time.Duration) {
	if logger == nil {
		return
	}
	logger.Info("synchronizer created",
		slog.Int("streams", streams),
		slog.String("policy", policy),
		slog.Int("queue_size", queueSize),
		slog.Duration("slop", slop),
	)
}

// LogTupleMatched logs a dispatched tuple.
func LogTupleMatched(logger *slog.Logger, tupleID string, spread time.Duration, consumers int) {
	if logger == nil {
		return
	}
	logger.Debug("tuple matched",
		slog.String("tuple_id", tupleID),
		slog.Float64("spread_ms", float64(spread)/float64(time.Millisecond)),
		slog.Int("consumers", consumers),
	)
}

// LogEventDropped logs an event that left its queue unmatched.
func LogEventDropped(logger *slog.Logger, stream int, seq uint64, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("event dropped",
		slog.Int("stream", stream),
		slog.Uint64("seq", seq),
		slog.String("reason", reason),
	)
}

// LogInsertRejected logs an event refused before reaching a queue.
func LogInsertRejected(logger *slog.Logger, stream int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event rejected",
		slog.Int("stream", stream),
		slog.String("error", err.Error()),
	)
}

// LogConsumerError logs a consumer failure (non-fatal).
func LogConsumerError(logger *slog.Logger, tupleID string, handle uint64, err error) {
	if logger == nil {
		return
	}
	logger.Error("consumer failed",
		slog.String("tuple_id", tupleID),
		slog.Uint64("consumer", handle),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time.
//
// Example:
//
//	done := TimedOperation()
//	// ... dispatch ...
//	elapsed := done()
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
