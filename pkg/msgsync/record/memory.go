package record

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory record store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	tuples map[string][]TupleRecord // sync -> tuples in sequence order
	ids    map[string]struct{}
	drops  map[string][]DropRecord
	closed bool
}

// NewMemoryStore creates a new in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tuples: make(map[string][]TupleRecord),
		ids:    make(map[string]struct{}),
		drops:  make(map[string][]DropRecord),
	}
}

// SaveTuple implements Store.
func (m *MemoryStore) SaveTuple(_ context.Context, rec TupleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if _, dup := m.ids[rec.ID]; dup {
		return ErrDuplicateTuple
	}

	rec.Sequence = len(m.tuples[rec.Sync]) + 1
	if rec.MatchedAt.IsZero() {
		rec.MatchedAt = time.Now().UTC()
	}
	rec.Events = cloneEvents(rec.Events)

	m.ids[rec.ID] = struct{}{}
	m.tuples[rec.Sync] = append(m.tuples[rec.Sync], rec)
	return nil
}

// SaveDrop implements Store.
func (m *MemoryStore) SaveDrop(_ context.Context, rec DropRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if rec.DroppedAt.IsZero() {
		rec.DroppedAt = time.Now().UTC()
	}
	rec.Event.Payload = slices.Clone(rec.Event.Payload)
	m.drops[rec.Sync] = append(m.drops[rec.Sync], rec)
	return nil
}

// Tuples implements Store.
func (m *MemoryStore) Tuples(_ context.Context, syncName string) ([]TupleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	out := make([]TupleRecord, 0, len(m.tuples[syncName]))
	for _, rec := range m.tuples[syncName] {
		rec.Events = cloneEvents(rec.Events)
		out = append(out, rec)
	}
	return out, nil
}

// Drops implements Store.
func (m *MemoryStore) Drops(_ context.Context, syncName string) ([]DropRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	return append([]DropRecord{}, m.drops[syncName]...), nil
}

// DeleteSync implements Store.
func (m *MemoryStore) DeleteSync(_ context.Context, syncName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	for _, rec := range m.tuples[syncName] {
		delete(m.ids, rec.ID)
	}
	delete(m.tuples, syncName)
	delete(m.drops, syncName)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.tuples = nil
	m.drops = nil
	m.ids = nil
	return nil
}

// cloneEvents copies events so stored records never alias caller slices.
func cloneEvents(events []EventRecord) []EventRecord {
	out := make([]EventRecord, len(events))
	for i, ev := range events {
		ev.Payload = slices.Clone(ev.Payload)
		out[i] = ev
	}
	return out
}
