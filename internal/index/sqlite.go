package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// schema is additive: records accumulate across runs.
const schema = `
CREATE TABLE IF NOT EXISTS records (
	id TEXT PRIMARY KEY,
	class TEXT NOT NULL,
	source TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS records_source ON records(source);

CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
	source, content,
	content='records',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS records_ai AFTER INSERT ON records BEGIN
	INSERT INTO records_fts(rowid, source, content)
	VALUES (new.rowid, new.source, new.content);
END;

CREATE TRIGGER IF NOT EXISTS records_ad AFTER DELETE ON records BEGIN
	INSERT INTO records_fts(records_fts, rowid, source, content)
	VALUES ('delete', old.rowid, old.source, old.content);
END;
`

// SQLiteIndex is a local full-text index backed by SQLite FTS5.
type SQLiteIndex struct {
	mu         sync.Mutex
	db         *sql.DB
	insertStmt *sql.Stmt
}

// Hit is a single search result.
type Hit struct {
	ID      string
	Source  string
	Snippet string
}

// NewSQLiteIndex opens (creating if needed) the index database at path.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO records (id, class, source, content, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}

	return &SQLiteIndex{db: db, insertStmt: stmt}, nil
}

func (s *SQLiteIndex) CreateRecord(ctx context.Context, className string, rec Record) (string, error) {
	id, err := NewRecordID()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.insertStmt.ExecContext(ctx, id, className, rec.Source, rec.Content, now); err != nil {
		return "", fmt.Errorf("index record %s: %w", rec.Source, err)
	}
	return id, nil
}

// Search runs an FTS5 match query and returns up to limit hits, best first.
func (s *SQLiteIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.source, snippet(records_fts, 1, '[', ']', '...', 12)
		FROM records_fts
		JOIN records r ON r.rowid = records_fts.rowid
		WHERE records_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Source, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Count returns the number of records for source.
func (s *SQLiteIndex) Count(ctx context.Context, source string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE source = ?`, source).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records for %s: %w", source, err)
	}
	return n, nil
}

func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.insertStmt.Close()
	return s.db.Close()
}

func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}
