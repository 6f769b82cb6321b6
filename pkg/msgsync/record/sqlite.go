package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists records to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tuples (
		id TEXT PRIMARY KEY,
		sync TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		matched_at TEXT NOT NULL,
		spread_ns INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tuples_sync ON tuples(sync, sequence)`,
	`CREATE TABLE IF NOT EXISTS tuple_events (
		tuple_id TEXT NOT NULL REFERENCES tuples(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		stream INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		stamp_ns INTEGER NOT NULL,
		received_ns INTEGER NOT NULL,
		source TEXT NOT NULL,
		payload BLOB,
		PRIMARY KEY (tuple_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS drops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sync TEXT NOT NULL,
		reason TEXT NOT NULL,
		dropped_at TEXT NOT NULL,
		stream INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		stamp_ns INTEGER NOT NULL,
		received_ns INTEGER NOT NULL,
		source TEXT NOT NULL,
		payload BLOB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_drops_sync ON drops(sync)`,
}

// NewSQLiteStore creates a new SQLite record store.
// The path should be a file path (e.g., "./tuples.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// SaveTuple implements Store.
func (s *SQLiteStore) SaveTuple(ctx context.Context, rec TupleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tuple insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM tuples WHERE id = ?`, rec.ID).Scan(&exists)
	if err == nil {
		return ErrDuplicateTuple
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check tuple: %w", err)
	}

	matchedAt := rec.MatchedAt
	if matchedAt.IsZero() {
		matchedAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tuples (id, sync, sequence, matched_at, spread_ns)
		VALUES (
			?, ?,
			COALESCE((SELECT MAX(sequence) FROM tuples WHERE sync = ?), 0) + 1,
			?, ?
		)
	`, rec.ID, rec.Sync, rec.Sync, matchedAt.UTC().Format(time.RFC3339Nano), int64(rec.Spread)); err != nil {
		return fmt.Errorf("save tuple: %w", err)
	}

	for i, ev := range rec.Events {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tuple_events (tuple_id, position, stream, seq, stamp_ns, received_ns, source, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, i, ev.Stream, int64(ev.Seq), unixNanos(ev.Stamp), unixNanos(ev.Received), ev.Source, ev.Payload); err != nil {
			return fmt.Errorf("save tuple event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tuple: %w", err)
	}
	return nil
}

// SaveDrop implements Store.
func (s *SQLiteStore) SaveDrop(ctx context.Context, rec DropRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	droppedAt := rec.DroppedAt
	if droppedAt.IsZero() {
		droppedAt = time.Now()
	}
	ev := rec.Event
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drops (sync, reason, dropped_at, stream, seq, stamp_ns, received_ns, source, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Sync, rec.Reason, droppedAt.UTC().Format(time.RFC3339Nano),
		ev.Stream, int64(ev.Seq), unixNanos(ev.Stamp), unixNanos(ev.Received), ev.Source, ev.Payload)
	if err != nil {
		return fmt.Errorf("save drop: %w", err)
	}
	return nil
}

// Tuples implements Store.
func (s *SQLiteStore) Tuples(ctx context.Context, syncName string) ([]TupleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.sequence, t.matched_at, t.spread_ns,
		       e.stream, e.seq, e.stamp_ns, e.received_ns, e.source, e.payload
		FROM tuples t
		JOIN tuple_events e ON e.tuple_id = t.id
		WHERE t.sync = ?
		ORDER BY t.sequence, e.position
	`, syncName)
	if err != nil {
		return nil, fmt.Errorf("list tuples: %w", err)
	}
	defer rows.Close()

	tuples := []TupleRecord{}
	for rows.Next() {
		var (
			id, matchedAt       string
			sequence            int
			spread              int64
			seq                 int64
			stampNs, receivedNs int64
			ev                  EventRecord
		)
		if err := rows.Scan(&id, &sequence, &matchedAt, &spread,
			&ev.Stream, &seq, &stampNs, &receivedNs, &ev.Source, &ev.Payload); err != nil {
			return nil, fmt.Errorf("scan tuple: %w", err)
		}
		ev.Seq = uint64(seq)
		ev.Stamp = fromUnixNanos(stampNs)
		ev.Received = fromUnixNanos(receivedNs)

		if n := len(tuples); n == 0 || tuples[n-1].ID != id {
			rec := TupleRecord{ID: id, Sync: syncName, Sequence: sequence, Spread: time.Duration(spread)}
			rec.MatchedAt, _ = time.Parse(time.RFC3339Nano, matchedAt)
			tuples = append(tuples, rec)
		}
		last := &tuples[len(tuples)-1]
		last.Events = append(last.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tuples: %w", err)
	}
	return tuples, nil
}

// Drops implements Store.
func (s *SQLiteStore) Drops(ctx context.Context, syncName string) ([]DropRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT reason, dropped_at, stream, seq, stamp_ns, received_ns, source, payload
		FROM drops
		WHERE sync = ?
		ORDER BY id
	`, syncName)
	if err != nil {
		return nil, fmt.Errorf("list drops: %w", err)
	}
	defer rows.Close()

	drops := []DropRecord{}
	for rows.Next() {
		var (
			droppedAt           string
			seq                 int64
			stampNs, receivedNs int64
		)
		rec := DropRecord{Sync: syncName}
		if err := rows.Scan(&rec.Reason, &droppedAt, &rec.Event.Stream, &seq,
			&stampNs, &receivedNs, &rec.Event.Source, &rec.Event.Payload); err != nil {
			return nil, fmt.Errorf("scan drop: %w", err)
		}
		rec.DroppedAt, _ = time.Parse(time.RFC3339Nano, droppedAt)
		rec.Event.Seq = uint64(seq)
		rec.Event.Stamp = fromUnixNanos(stampNs)
		rec.Event.Received = fromUnixNanos(receivedNs)
		drops = append(drops, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drops: %w", err)
	}
	return drops, nil
}

// DeleteSync implements Store.
func (s *SQLiteStore) DeleteSync(ctx context.Context, syncName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM tuple_events
		WHERE tuple_id IN (SELECT id FROM tuples WHERE sync = ?)
	`, syncName); err != nil {
		return fmt.Errorf("delete tuple events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tuples WHERE sync = ?`, syncName); err != nil {
		return fmt.Errorf("delete tuples: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM drops WHERE sync = ?`, syncName); err != nil {
		return fmt.Errorf("delete drops: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// unixNanos stores the zero time as 0, which UnixNano cannot represent.
func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
