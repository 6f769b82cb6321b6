package msgsync_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/msgsync/pkg/msgsync"
)

func pair(t *testing.T, s *msgsync.Synchronizer[int], sec float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, 0, at(sec), int(sec)))
	require.NoError(t, s.Add(ctx, 1, at(sec), int(sec)))
}

func TestDispatch_RegistrationOrder(t *testing.T) {
	s, err := msgsync.New[int](2)
	require.NoError(t, err)

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		s.Register(func(context.Context, msgsync.Tuple[int]) error {
			order = append(order, name)
			return nil
		})
	}

	pair(t, s, 1)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestDispatch_FaultIsolation(t *testing.T) {
	var reported []error
	s, err := msgsync.New[int](2,
		msgsync.WithConsumerErrorHandler(func(err error) { reported = append(reported, err) }))
	require.NoError(t, err)

	before := &collector[int]{}
	after := &collector[int]{}
	s.Register(before.consume)
	erroring := s.Register(func(context.Context, msgsync.Tuple[int]) error {
		return errors.New("write failed")
	})
	panicking := s.Register(func(context.Context, msgsync.Tuple[int]) error {
		panic("consumer exploded")
	})
	s.Register(after.consume)

	assert.NotPanics(t, func() { pair(t, s, 1) })

	assert.Equal(t, 1, before.count())
	assert.Equal(t, 1, after.count(), "consumers after a failing one still run")
	require.Len(t, reported, 2)

	var consumerErr *msgsync.ConsumerError
	require.ErrorAs(t, reported[0], &consumerErr)
	assert.Equal(t, erroring, consumerErr.Handle)
	assert.Contains(t, consumerErr.Error(), "write failed")

	var panicErr *msgsync.PanicError
	require.ErrorAs(t, reported[1], &panicErr)
	assert.Equal(t, panicking, panicErr.Handle)
	assert.Equal(t, "consumer exploded", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	assert.Equal(t, before.tuples[0].ID, panicErr.TupleID)

	// The synchronizer keeps working after the panic.
	pair(t, s, 2)
	assert.Equal(t, 2, after.count())
}

func TestDispatch_Unregister(t *testing.T) {
	s, err := msgsync.New[int](2)
	require.NoError(t, err)

	c := &collector[int]{}
	h := s.Register(c.consume)
	assert.NotZero(t, h)

	pair(t, s, 1)
	assert.True(t, s.Unregister(h))
	assert.False(t, s.Unregister(h))
	assert.False(t, s.Unregister(msgsync.Handle(999)))

	pair(t, s, 2)
	assert.Equal(t, 1, c.count())
}

func TestDispatch_RegisterFromConsumer(t *testing.T) {
	s, err := msgsync.New[int](2)
	require.NoError(t, err)

	late := &collector[int]{}
	var self msgsync.Handle
	self = s.Register(func(context.Context, msgsync.Tuple[int]) error {
		s.Register(late.consume)
		s.Unregister(self)
		return nil
	})

	pair(t, s, 1)
	assert.Equal(t, 0, late.count(), "a consumer added during dispatch waits for the next tuple")

	pair(t, s, 2)
	assert.Equal(t, 1, late.count())
}

func TestDispatch_StatsFromConsumer(t *testing.T) {
	s, err := msgsync.New[int](2)
	require.NoError(t, err)

	var seen msgsync.Stats
	s.Register(func(context.Context, msgsync.Tuple[int]) error {
		seen = s.Stats()
		return nil
	})

	pair(t, s, 1)
	assert.Equal(t, uint64(2), seen.Received)
	assert.Equal(t, uint64(1), seen.Matched)
}

func TestDispatch_PayloadFunc(t *testing.T) {
	s, err := msgsync.New[string](3)
	require.NoError(t, err)

	var got []string
	s.Register(msgsync.PayloadFunc(func(payloads ...string) {
		got = append(got, payloads...)
	}))

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, 2, at(0), "c"))
	require.NoError(t, s.Add(ctx, 0, at(0), "a"))
	require.NoError(t, s.Add(ctx, 1, at(0), "b"))

	assert.Equal(t, []string{"a", "b", "c"}, got, "payloads are positional by stream")
}

func TestDispatch_DropObserverPanicIsolated(t *testing.T) {
	var reported []error
	s, err := msgsync.New[int](2,
		msgsync.WithQueueSize(1),
		msgsync.WithConsumerErrorHandler(func(err error) { reported = append(reported, err) }))
	require.NoError(t, err)

	drops := &dropLog[int]{}
	s.RegisterDrop(func(msgsync.Event[int], msgsync.DropReason) { panic("observer bug") })
	s.RegisterDrop(drops.observe)

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, 0, at(0), 0))
	require.NoError(t, s.Add(ctx, 0, at(1), 1))

	assert.Equal(t, 1, drops.count())
	require.Len(t, reported, 1)
	var panicErr *msgsync.PanicError
	assert.ErrorAs(t, reported[0], &panicErr)
}

func TestDispatch_ContextPassedThrough(t *testing.T) {
	type key struct{}
	s, err := msgsync.New[int](2)
	require.NoError(t, err)

	var got any
	s.Register(func(ctx context.Context, _ msgsync.Tuple[int]) error {
		got = ctx.Value(key{})
		return nil
	})

	ctx := context.WithValue(context.Background(), key{}, "trace-me")
	require.NoError(t, s.Add(ctx, 0, at(0), 0))
	require.NoError(t, s.Add(ctx, 1, at(0), 1))
	assert.Equal(t, "trace-me", got)
}
