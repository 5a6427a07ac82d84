// Package indexdb maintains a queryable sqlite index of room events.
package indexdb

import (
	"database/sql"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"antigravity.world/internal/relay"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	at_unix   INTEGER NOT NULL,
	type      TEXT NOT NULL,
	sender_id TEXT NOT NULL DEFAULT '',
	raw       BLOB
);
CREATE INDEX IF NOT EXISTS idx_events_at ON events(at_unix);
CREATE INDEX IF NOT EXISTS idx_events_sender ON events(sender_id, at_unix);
`

// DB indexes room events. Writes go through a single goroutine so the
// relay loop never blocks on disk.
type DB struct {
	db   *sql.DB
	log  *stdlog.Logger
	in   chan relay.Event
	done chan struct{}
}

func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "events.db")
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("indexdb schema: %w", err)
	}
	d := &DB{
		db:   db,
		log:  stdlog.New(os.Stderr, "[indexdb] ", stdlog.LstdFlags|stdlog.Lmicroseconds),
		in:   make(chan relay.Event, 1024),
		done: make(chan struct{}),
	}
	go d.writer()
	return d, nil
}

// Append queues an event for indexing. Drops on a full queue rather
// than stalling the caller.
func (d *DB) Append(ev relay.Event) error {
	select {
	case d.in <- ev:
	default:
		d.log.Printf("queue full, dropping event type=%s", ev.Type)
	}
	return nil
}

func (d *DB) Close() error {
	close(d.in)
	<-d.done
	return d.db.Close()
}

func (d *DB) writer() {
	defer close(d.done)
	for ev := range d.in {
		if _, err := d.db.Exec(
			`INSERT INTO events (at_unix, type, sender_id, raw) VALUES (?, ?, ?, ?)`,
			ev.At.UnixMilli(), ev.Type, ev.SenderID, []byte(ev.Raw),
		); err != nil {
			d.log.Printf("insert failed: %v", err)
		}
	}
}

// CountSince reports how many events of the given type arrived after t.
func (d *DB) CountSince(typ string, t time.Time) (int, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE type = ? AND at_unix > ?`,
		typ, t.UnixMilli(),
	).Scan(&n)
	return n, err
}

// RecentBySender returns the newest events from one sender, newest first.
func (d *DB) RecentBySender(senderID string, limit int) ([]relay.Event, error) {
	rows, err := d.db.Query(
		`SELECT at_unix, type, sender_id, raw FROM events
		 WHERE sender_id = ? ORDER BY at_unix DESC LIMIT ?`,
		senderID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []relay.Event
	for rows.Next() {
		var at int64
		var ev relay.Event
		var raw []byte
		if err := rows.Scan(&at, &ev.Type, &ev.SenderID, &raw); err != nil {
			return nil, err
		}
		ev.At = time.UnixMilli(at)
		ev.Raw = raw
		out = append(out, ev)
	}
	return out, rows.Err()
}
