package msgsync_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/msgsync/pkg/msgsync"
)

// epoch is the base of every test timestamp.
var epoch = time.Unix(1_700_000_000, 0)

// at returns epoch plus the given number of seconds.
func at(seconds float64) time.Time {
	return epoch.Add(time.Duration(math.Round(seconds * float64(time.Second))))
}

// collector records dispatched tuples.
type collector[T any] struct {
	mu     sync.Mutex
	tuples []msgsync.Tuple[T]
}

func (c *collector[T]) consume(_ context.Context, t msgsync.Tuple[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tuples = append(c.tuples, t)
	return nil
}

func (c *collector[T]) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tuples)
}

// payloads returns the payloads of every dispatched tuple in dispatch order.
func (c *collector[T]) payloads() [][]T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]T, len(c.tuples))
	for i, t := range c.tuples {
		out[i] = t.Payloads()
	}
	return out
}

// dropLog records drop notifications.
type dropLog[T any] struct {
	mu      sync.Mutex
	events  []msgsync.Event[T]
	reasons []msgsync.DropReason
}

func (d *dropLog[T]) observe(ev msgsync.Event[T], reason msgsync.DropReason) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	d.reasons = append(d.reasons, reason)
}

func (d *dropLog[T]) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

// newSync builds a synchronizer with a collector attached.
func newSync[T any](t *testing.T, streams int, opts ...msgsync.Option) (*msgsync.Synchronizer[T], *collector[T]) {
	t.Helper()
	s, err := msgsync.New[T](streams, opts...)
	require.NoError(t, err)
	c := &collector[T]{}
	s.Register(c.consume)
	return s, c
}

// captureHandler collects JSON log lines at debug level.
type captureHandler struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{}
}

func (h *captureHandler) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.Write(p)
}

func (h *captureHandler) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(h, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (h *captureHandler) records() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []map[string]any
	for _, line := range bytes.Split(h.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (h *captureHandler) messages() []string {
	var out []string
	for _, rec := range h.records() {
		msg, _ := rec["msg"].(string)
		out = append(out, msg)
	}
	return out
}
