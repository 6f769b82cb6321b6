package record_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/msgsync/pkg/msgsync/record"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) record.Store

var base = time.Unix(1_700_000_000, 0)

func tupleRecord(id, syncName string, stamps ...time.Duration) record.TupleRecord {
	rec := record.TupleRecord{ID: id, Sync: syncName, Spread: 5 * time.Millisecond}
	for i, d := range stamps {
		rec.Events = append(rec.Events, record.EventRecord{
			Stream:   i,
			Seq:      uint64(i + 1),
			Stamp:    base.Add(d),
			Received: base.Add(d + time.Millisecond),
			Source:   "header",
			Payload:  []byte(id),
		})
	}
	return rec
}

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	ctx := context.Background()

	t.Run(name+"/SaveTuple_and_List", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.SaveTuple(ctx, tupleRecord("t1", "imu-gps", 0, 5*time.Millisecond)))

		tuples, err := store.Tuples(ctx, "imu-gps")
		require.NoError(t, err)
		require.Len(t, tuples, 1)

		got := tuples[0]
		assert.Equal(t, "t1", got.ID)
		assert.Equal(t, "imu-gps", got.Sync)
		assert.Equal(t, 1, got.Sequence)
		assert.Equal(t, 5*time.Millisecond, got.Spread)
		assert.False(t, got.MatchedAt.IsZero())
		require.Len(t, got.Events, 2)
		for i, ev := range got.Events {
			assert.Equal(t, i, ev.Stream)
			assert.Equal(t, uint64(i+1), ev.Seq)
			assert.Equal(t, "header", ev.Source)
			assert.Equal(t, []byte("t1"), ev.Payload)
		}
		assert.True(t, got.Events[1].Stamp.Equal(base.Add(5*time.Millisecond)))
		assert.True(t, got.Events[1].Received.Equal(base.Add(6*time.Millisecond)))
	})

	t.Run(name+"/Tuples_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		tuples, err := store.Tuples(ctx, "nothing")
		require.NoError(t, err)
		assert.Empty(t, tuples)
	})

	t.Run(name+"/Tuples_Ordered", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, store.SaveTuple(ctx, tupleRecord(id, "s", 0, 0)))
		}
		require.NoError(t, store.SaveTuple(ctx, tupleRecord("other", "s2", 0, 0)))

		tuples, err := store.Tuples(ctx, "s")
		require.NoError(t, err)
		require.Len(t, tuples, 3)
		for i, id := range []string{"a", "b", "c"} {
			assert.Equal(t, id, tuples[i].ID)
			assert.Equal(t, i+1, tuples[i].Sequence)
		}

		other, err := store.Tuples(ctx, "s2")
		require.NoError(t, err)
		require.Len(t, other, 1)
		assert.Equal(t, 1, other[0].Sequence)
	})

	t.Run(name+"/SaveTuple_Duplicate", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.SaveTuple(ctx, tupleRecord("dup", "s", 0, 0)))
		err := store.SaveTuple(ctx, tupleRecord("dup", "s", 0, 0))
		assert.ErrorIs(t, err, record.ErrDuplicateTuple)

		tuples, err := store.Tuples(ctx, "s")
		require.NoError(t, err)
		assert.Len(t, tuples, 1)
	})

	t.Run(name+"/Drops", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		for i, reason := range []string{"capacity", "pruned"} {
			require.NoError(t, store.SaveDrop(ctx, record.DropRecord{
				Sync:   "s",
				Reason: reason,
				Event: record.EventRecord{
					Stream:  i,
					Seq:     uint64(10 + i),
					Stamp:   base,
					Source:  "arrival",
					Payload: []byte{byte(i)},
				},
			}))
		}

		drops, err := store.Drops(ctx, "s")
		require.NoError(t, err)
		require.Len(t, drops, 2)
		assert.Equal(t, "capacity", drops[0].Reason)
		assert.Equal(t, "pruned", drops[1].Reason)
		assert.Equal(t, uint64(11), drops[1].Event.Seq)
		assert.Equal(t, "arrival", drops[1].Event.Source)
		assert.Equal(t, []byte{1}, drops[1].Event.Payload)
		assert.False(t, drops[0].DroppedAt.IsZero())

		none, err := store.Drops(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run(name+"/DeleteSync", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.SaveTuple(ctx, tupleRecord("x", "s", 0, 0)))
		require.NoError(t, store.SaveDrop(ctx, record.DropRecord{Sync: "s", Reason: "pruned"}))
		require.NoError(t, store.SaveTuple(ctx, tupleRecord("y", "keep", 0, 0)))

		require.NoError(t, store.DeleteSync(ctx, "s"))
		require.NoError(t, store.DeleteSync(ctx, "missing"))

		tuples, err := store.Tuples(ctx, "s")
		require.NoError(t, err)
		assert.Empty(t, tuples)
		drops, err := store.Drops(ctx, "s")
		require.NoError(t, err)
		assert.Empty(t, drops)

		kept, err := store.Tuples(ctx, "keep")
		require.NoError(t, err)
		assert.Len(t, kept, 1)

		// The ID is free again once deleted.
		assert.NoError(t, store.SaveTuple(ctx, tupleRecord("x", "s", 0, 0)))
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.SaveTuple(ctx, tupleRecord("a", "s", 0)), record.ErrStoreClosed)
		assert.ErrorIs(t, store.SaveDrop(ctx, record.DropRecord{Sync: "s"}), record.ErrStoreClosed)
		_, err := store.Tuples(ctx, "s")
		assert.ErrorIs(t, err, record.ErrStoreClosed)
		_, err = store.Drops(ctx, "s")
		assert.ErrorIs(t, err, record.ErrStoreClosed)
		assert.ErrorIs(t, store.DeleteSync(ctx, "s"), record.ErrStoreClosed)
	})

	t.Run(name+"/Concurrent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		const workers = 8
		const perWorker = 10

		var wg sync.WaitGroup
		for w := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range perWorker {
					id := string(rune('a'+w)) + string(rune('0'+i))
					assert.NoError(t, store.SaveTuple(ctx, tupleRecord(id, "s", 0, 0)))
				}
			}()
		}
		wg.Wait()

		tuples, err := store.Tuples(ctx, "s")
		require.NoError(t, err)
		require.Len(t, tuples, workers*perWorker)
		for i, rec := range tuples {
			assert.Equal(t, i+1, rec.Sequence)
		}
	})
}

// TestMemoryStore runs contract tests against MemoryStore.
func TestMemoryStore(t *testing.T) {
	factory := func(t *testing.T) record.Store {
		return record.NewMemoryStore()
	}
	storeContractTest(t, "MemoryStore", factory)
}

// TestSQLiteStore runs contract tests against SQLiteStore.
func TestSQLiteStore(t *testing.T) {
	factory := func(t *testing.T) record.Store {
		store, err := record.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	}
	storeContractTest(t, "SQLiteStore", factory)
}

func TestSQLiteStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tuples.db")

	store1, err := record.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.SaveTuple(ctx, tupleRecord("persisted", "s", 0, 3*time.Millisecond)))
	require.NoError(t, store1.Close())

	store2, err := record.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	tuples, err := store2.Tuples(ctx, "s")
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	assert.Equal(t, "persisted", tuples[0].ID)
	assert.Len(t, tuples[0].Events, 2)

	// Sequence continues after reopening.
	require.NoError(t, store2.SaveTuple(ctx, tupleRecord("next", "s", 0, 0)))
	tuples, err = store2.Tuples(ctx, "s")
	require.NoError(t, err)
	require.Len(t, tuples, 2)
	assert.Equal(t, 2, tuples[1].Sequence)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := record.NewSQLiteStore("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	store, err := record.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestMemoryStore_DoesNotAliasPayloads(t *testing.T) {
	ctx := context.Background()
	store := record.NewMemoryStore()

	rec := tupleRecord("t", "s", 0)
	require.NoError(t, store.SaveTuple(ctx, rec))
	rec.Events[0].Payload[0] = 'X'

	tuples, err := store.Tuples(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []byte("t"), tuples[0].Events[0].Payload)

	tuples[0].Events[0].Payload[0] = 'Y'
	again, err := store.Tuples(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []byte("t"), again[0].Events[0].Payload)
}
