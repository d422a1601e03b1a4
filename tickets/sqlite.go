package tickets

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	id         TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	category   TEXT NOT NULL,
	priority   TEXT NOT NULL,
	created_at TEXT NOT NULL
);`

// SQLiteSink persists tickets to a SQLite database so they survive
// process restarts. The workflow state itself is never persisted;
// tickets are the one durable artifact of a run.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) a sink at path. Use
// ":memory:" for an ephemeral database in tests.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ticket database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize ticket database: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Create implements Sink.
func (s *SQLiteSink) Create(ctx context.Context, t Ticket) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (id, request_id, category, priority, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.RequestID, t.Category, t.Priority, t.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("insert ticket %s: %w", t.ID, err)
	}
	return nil
}

// Get returns the ticket with the given ID.
func (s *SQLiteSink) Get(ctx context.Context, id string) (Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, request_id, category, priority, created_at FROM tickets WHERE id = ?`, id)

	var t Ticket
	var createdAt string
	if err := row.Scan(&t.ID, &t.RequestID, &t.Category, &t.Priority, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return Ticket{}, ErrNotFound
		}
		return Ticket{}, fmt.Errorf("load ticket %s: %w", id, err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Ticket{}, fmt.Errorf("ticket %s has malformed created_at: %w", id, err)
	}
	t.CreatedAt = parsed
	return t, nil
}

// Count returns the number of recorded tickets.
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
