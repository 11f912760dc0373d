// CLAUDE:SUMMARY Durable FIFO offline queue in SQLite: enqueue failed writes, single-pass drain with reentrancy guard.
// Package queue implements the offline durability queue backed by SQLite.
//
// Each row is one failed write request, replayed by the periodic
// processor until it succeeds. A pass processes a snapshot of the queue
// in FIFO order: entries that succeed are deleted, entries that fail are
// retained in their original relative order for the next pass. Failure
// of one entry never blocks the rest of the pass.
//
// A pass-in-progress guard serializes ProcessAll: if the periodic
// trigger fires while a pass is still running, the new pass is dropped
// so an entry can never be submitted twice concurrently.
//
// Expected schema (created by EnsureTable):
//
//	CREATE TABLE IF NOT EXISTS offline_queue (
//	    id          TEXT PRIMARY KEY,
//	    payload     BLOB NOT NULL,
//	    page_id     TEXT NOT NULL DEFAULT '',
//	    enqueued_at INTEGER NOT NULL  -- milliseconds since epoch
//	);
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one pending write request.
type Entry struct {
	ID         string    `json:"id"`
	Payload    []byte    `json:"-"`
	PageID     string    `json:"page_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Submit attempts one entry's remote write. Return nil to drop the
// entry, non-nil to keep it for the next pass.
type Submit func(ctx context.Context, e Entry) error

// Queue is the queue handle. All mutation goes through Enqueue and
// ProcessAll; there is no other writer.
type Queue struct {
	db     *sql.DB
	logger *slog.Logger

	mu       sync.Mutex
	inFlight bool
}

// New creates a queue handle. Call EnsureTable once at startup.
func New(db *sql.DB, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{db: db, logger: logger}
}

// EnsureTable creates the offline_queue table and index if absent.
func (q *Queue) EnsureTable(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS offline_queue (
			id          TEXT PRIMARY KEY,
			payload     BLOB NOT NULL,
			page_id     TEXT NOT NULL DEFAULT '',
			enqueued_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_offline_queue_order ON offline_queue (enqueued_at, id);
	`)
	return err
}

// Enqueue appends one entry. UUIDv7 IDs keep insertion order stable even
// when two entries share a millisecond timestamp.
func (q *Queue) Enqueue(ctx context.Context, payload []byte, pageID string) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO offline_queue (id, payload, page_id, enqueued_at) VALUES (?,?,?,?)`,
		id, payload, pageID, time.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}
	return id, nil
}

// ProcessAll runs one drain pass over a snapshot of the queue.
// It returns the number of entries dropped (succeeded) and kept.
// A concurrent pass already in flight makes this call a no-op.
func (q *Queue) ProcessAll(ctx context.Context, submit Submit) (dropped, kept int, err error) {
	q.mu.Lock()
	if q.inFlight {
		q.mu.Unlock()
		q.logger.Debug("queue: pass already in flight, skipping")
		return 0, 0, nil
	}
	q.inFlight = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.inFlight = false
		q.mu.Unlock()
	}()

	entries, err := q.Entries(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, e := range entries {
		if err := submit(ctx, e); err != nil {
			q.logger.Warn("queue: entry still failing", "id", e.ID, "error", err)
			kept++
			continue
		}
		if _, err := q.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = ?`, e.ID); err != nil {
			q.logger.Warn("queue: delete after success", "id", e.ID, "error", err)
			kept++
			continue
		}
		dropped++
	}
	return dropped, kept, nil
}

// Entries returns the queue snapshot in FIFO order.
func (q *Queue) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, payload, page_id, enqueued_at FROM offline_queue ORDER BY enqueued_at, id`)
	if err != nil {
		return nil, fmt.Errorf("queue: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.ID, &e.Payload, &e.PageID, &at); err != nil {
			return nil, err
		}
		e.EnqueuedAt = time.UnixMilli(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Len returns the number of pending entries.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_queue`).Scan(&n)
	return n, err
}
