// Package store provides the central SQLite database for Clover. A single
// clover.db file holds reminders, notes, and the dispatch history. The
// WhatsApp notifier keeps its own session database (whatsmeow-managed
// tables); everything Clover owns lives here.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jholhewres/clover/pkg/clover/reminder"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
)

// schema is the DDL executed on every startup (idempotent via IF NOT EXISTS).
const schema = `
-- One-shot reminders. notified flips 0 -> 1 exactly once.
CREATE TABLE IF NOT EXISTS reminders (
    id         TEXT PRIMARY KEY,
    text       TEXT NOT NULL,
    due_at     TEXT NOT NULL,
    notified   INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(notified, due_at);

-- Spoken notes ("take a note ...").
CREATE TABLE IF NOT EXISTS notes (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    text       TEXT NOT NULL,
    created_at TEXT NOT NULL
);

-- Dispatch history (one row per handled or unhandled query).
CREATE TABLE IF NOT EXISTS dispatch_log (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    query      TEXT NOT NULL,
    handled    INTEGER NOT NULL,
    rule       TEXT DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatch_log_created ON dispatch_log(created_at);
`

// timeFormat is how timestamps are stored (sortable, timezone-aware).
const timeFormat = time.RFC3339

// Store wraps the central database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) clover.db at path, enables WAL for concurrent
// reads, and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "./data/clover.db"
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	db, err := sql.Open("sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------- reminder.Storage ----------

// Save inserts a new reminder row.
func (s *Store) Save(r *reminder.Reminder) error {
	_, err := s.db.Exec(
		`INSERT INTO reminders (id, text, due_at, notified, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Text, r.DueAt.Format(timeFormat), boolToInt(r.Notified),
		r.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert reminder %s: %w", r.ID, err)
	}
	return nil
}

// MarkNotified flips the notified flag for one reminder.
func (s *Store) MarkNotified(id string) error {
	_, err := s.db.Exec(`UPDATE reminders SET notified = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark reminder %s notified: %w", id, err)
	}
	return nil
}

// LoadAll returns every stored reminder, oldest first.
func (s *Store) LoadAll() ([]*reminder.Reminder, error) {
	rows, err := s.db.Query(
		`SELECT id, text, due_at, notified, created_at FROM reminders ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load reminders: %w", err)
	}
	defer rows.Close()

	var out []*reminder.Reminder
	for rows.Next() {
		var (
			r                reminder.Reminder
			dueAt, createdAt string
			notified         int
		)
		if err := rows.Scan(&r.ID, &r.Text, &dueAt, &notified, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.Notified = notified != 0
		if r.DueAt, err = time.Parse(timeFormat, dueAt); err != nil {
			return nil, fmt.Errorf("parse due_at for %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", r.ID, err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ---------- Notes ----------

// Note is one spoken note.
type Note struct {
	ID        int64
	Text      string
	CreatedAt time.Time
}

// AddNote appends a note.
func (s *Store) AddNote(text string) (*Note, error) {
	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO notes (text, created_at) VALUES (?, ?)`,
		text, now.Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("note id: %w", err)
	}
	return &Note{ID: id, Text: text, CreatedAt: now}, nil
}

// ListNotes returns all notes, oldest first.
func (s *Store) ListNotes() ([]Note, error) {
	rows, err := s.db.Query(`SELECT id, text, created_at FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var (
			n       Note
			created string
		)
		if err := rows.Scan(&n.ID, &n.Text, &created); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		if n.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
			return nil, fmt.Errorf("parse note time: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ---------- Dispatch history ----------

// DispatchEntry records one query and how it was routed.
type DispatchEntry struct {
	Query     string
	Handled   bool
	Rule      string
	CreatedAt time.Time
}

// LogDispatch appends one dispatch record.
func (s *Store) LogDispatch(e DispatchEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO dispatch_log (query, handled, rule, created_at) VALUES (?, ?, ?, ?)`,
		e.Query, boolToInt(e.Handled), e.Rule, e.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert dispatch entry: %w", err)
	}
	return nil
}

// RecentDispatches returns the latest entries, newest first.
func (s *Store) RecentDispatches(limit int) ([]DispatchEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT query, handled, rule, created_at FROM dispatch_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("load dispatch log: %w", err)
	}
	defer rows.Close()

	var out []DispatchEntry
	for rows.Next() {
		var (
			e       DispatchEntry
			handled int
			created string
		)
		if err := rows.Scan(&e.Query, &handled, &e.Rule, &created); err != nil {
			return nil, fmt.Errorf("scan dispatch entry: %w", err)
		}
		e.Handled = handled != 0
		if e.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
			return nil, fmt.Errorf("parse dispatch time: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
