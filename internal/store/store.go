package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS tool_calls (
	id          TEXT PRIMARY KEY,
	tool        TEXT NOT NULL,
	transport   TEXT NOT NULL,
	arguments   TEXT NOT NULL DEFAULT '',
	result      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_created_at ON tool_calls(created_at);
`

// Call is one audited tool invocation.
type Call struct {
	ID         string
	Tool       string
	Transport  string
	Arguments  string
	Result     string
	Status     string
	Error      string
	DurationMs int64
	CreatedAt  time.Time
}

// Store keeps the tool call audit log in SQLite.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordCall appends c to the log. Empty ID and CreatedAt are filled in.
func (s *Store) RecordCall(ctx context.Context, c Call) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_calls (id, tool, transport, arguments, result, status, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Tool, c.Transport, c.Arguments, c.Result, c.Status, c.Error, c.DurationMs, c.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// RecentCalls returns up to limit calls, newest first.
func (s *Store) RecentCalls(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tool, transport, arguments, result, status, error, duration_ms, created_at
		 FROM tool_calls ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var (
			c       Call
			created int64
		)
		if err := rows.Scan(&c.ID, &c.Tool, &c.Transport, &c.Arguments, &c.Result, &c.Status, &c.Error, &c.DurationMs, &created); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.CreatedAt = time.Unix(0, created)
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// CountByTool returns how many calls each tool has received.
func (s *Store) CountByTool(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tool, COUNT(*) FROM tool_calls GROUP BY tool`)
	if err != nil {
		return nil, fmt.Errorf("count calls: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			tool string
			n    int
		)
		if err := rows.Scan(&tool, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[tool] = n
	}
	return counts, rows.Err()
}
