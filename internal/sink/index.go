package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"wordlog/internal/linelog"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS lines (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    committed_ns  INTEGER NOT NULL,
    text          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lines_committed ON lines(committed_ns);
`

// Line is one indexed commit.
type Line struct {
	ID          int64
	CommittedAt time.Time
	Text        string
}

// Index mirrors committed lines into SQLite. It accepts the same JSON-Lines
// records the file sink does.
type Index struct {
	db  *sql.DB
	now func() time.Time
}

// OpenIndex opens or creates the index database.
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply index schema: %w", err)
	}
	return &Index{db: db, now: time.Now}, nil
}

// Write decodes every newline-terminated record in p and inserts it.
func (x *Index) Write(p []byte) (int, error) {
	tx, err := x.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ts := x.now().UnixNano()
	for _, raw := range strings.Split(string(p), "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		rec, err := linelog.Decode([]byte(raw))
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(`INSERT INTO lines (committed_ns, text) VALUES (?, ?)`, ts, rec.Line); err != nil {
			return 0, fmt.Errorf("insert line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(p), nil
}

// Search returns lines containing substr, newest first. A limit <= 0
// returns every match.
func (x *Index) Search(substr string, limit int) ([]Line, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := x.db.Query(`
		SELECT id, committed_ns, text FROM lines
		WHERE instr(text, ?) > 0
		ORDER BY id DESC
		LIMIT ?`, substr, limit)
	if err != nil {
		return nil, fmt.Errorf("search lines: %w", err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var (
			l  Line
			ns int64
		)
		if err := rows.Scan(&l.ID, &ns, &l.Text); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		l.CommittedAt = time.Unix(0, ns)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Count returns the number of indexed lines.
func (x *Index) Count() (int64, error) {
	var n int64
	if err := x.db.QueryRow(`SELECT COUNT(*) FROM lines`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count lines: %w", err)
	}
	return n, nil
}

// Ping checks the database is reachable.
func (x *Index) Ping(ctx context.Context) error {
	return x.db.PingContext(ctx)
}

// Close closes the database.
func (x *Index) Close() error {
	if x.db != nil {
		return x.db.Close()
	}
	return nil
}
