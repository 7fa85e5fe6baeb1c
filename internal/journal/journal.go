// Package journal keeps a SQLite record of every workspace tool call.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"cophysicist/internal/logging"
	"cophysicist/internal/tooling"
)

// Entry is one recorded tool call.
type Entry struct {
	ID        int64
	Tool      string
	Args      string
	Success   bool
	Error     string
	Truncated bool
	Duration  time.Duration
	At        time.Time
}

// Journal appends tool calls to a SQLite database. It satisfies
// tooling.Recorder.
type Journal struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	now  func() time.Time
}

var _ tooling.Recorder = (*Journal)(nil)

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path must be set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare journal dir: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if damaged(db) {
		logging.ErrorLog("journal at %s is unreadable, recreating it", path)
		db.Close()
		for _, suffix := range []string{"", "-wal", "-shm"} {
			os.Remove(path + suffix)
		}
		if db, err = openDB(path); err != nil {
			return nil, err
		}
	}

	if _, err := db.ExecContext(context.Background(), `
CREATE TABLE IF NOT EXISTS tool_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tool TEXT NOT NULL,
	args TEXT NOT NULL,
	success INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	truncated INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL,
	created_at INTEGER NOT NULL
)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db, path: path, now: time.Now}, nil
}

func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return db, nil
}

// damaged reports whether an existing database file cannot be queried.
func damaged(db *sql.DB) bool {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&n)
	return err != nil
}

// Path returns the database file location.
func (j *Journal) Path() string {
	return j.path
}

// Record stores one dispatched call. Failures are logged and otherwise
// ignored so journaling never changes a tool outcome.
func (j *Journal) Record(ctx context.Context, name string, args map[string]any, result tooling.Result, duration time.Duration) {
	encoded, err := json.Marshal(redact(args))
	if err != nil {
		encoded = []byte("{}")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.db.ExecContext(context.WithoutCancel(ctx), `
INSERT INTO tool_calls (tool, args, success, error, truncated, duration_ms, created_at)
VALUES (?,?,?,?,?,?,?)`,
		name, string(encoded), boolToInt(result.Success), result.Error,
		boolToInt(result.Truncated), duration.Milliseconds(), j.now().UnixMilli())
	if err != nil {
		logging.ErrorLog("journal: record %s: %v", name, err)
	}
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, tool, args, success, error, truncated, duration_ms, created_at
FROM tool_calls ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                  Entry
			success, truncated int
			durationMS, atMS   int64
		)
		if err := rows.Scan(&e.ID, &e.Tool, &e.Args, &success, &e.Error, &truncated, &durationMS, &atMS); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		e.Success = success != 0
		e.Truncated = truncated != 0
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.At = time.UnixMilli(atMS)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// redact keeps script bodies out of the journal; only their size is stored.
func redact(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && k == "content" {
			out[k] = fmt.Sprintf("<%d bytes>", len(s))
			continue
		}
		out[k] = v
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
