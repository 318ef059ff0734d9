// Package memory implements the working/semantic/episodic recall store:
// a sqlite-backed table of MemoryEntry records with importance-weighted
// eviction when the store exceeds its configured capacity.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cortexos/cortexos/internal/cortexerr"
)

// Kind is the closed set of memory categories.
type Kind string

const (
	Working  Kind = "working"
	Semantic Kind = "semantic"
	Episodic Kind = "episodic"
)

// Metadata carries the bookkeeping eviction scores against.
type Metadata struct {
	Importance  float64 // [0, 1]
	AccessedAt  time.Time
	AccessCount int
	DecayFactor float64
}

// Entry is one stored memory.
type Entry struct {
	ID       int64
	Type     Kind
	Content  string
	Metadata Metadata
	// Embedding is an optional vector representation; stored as a raw
	// float32 byte blob when non-nil, left NULL otherwise.
	Embedding []float32
}

// Store manages the sqlite-backed memory database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates a Store, initializing the on-disk schema if needed.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cortexerr.Wrap(cortexerr.Memory, "memory.open", fmt.Errorf("create database directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Memory, "memory.open", fmt.Errorf("open database: %w", err))
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, cortexerr.Wrap(cortexerr.Memory, "memory.open", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS memory_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    type TEXT NOT NULL,
    content TEXT NOT NULL,
    importance REAL NOT NULL DEFAULT 0,
    accessed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    access_count INTEGER NOT NULL DEFAULT 0,
    decay_factor REAL NOT NULL DEFAULT 1,
    embedding BLOB,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memory_entries_type ON memory_entries(type);
CREATE INDEX IF NOT EXISTS idx_memory_entries_importance ON memory_entries(importance DESC);
CREATE INDEX IF NOT EXISTS idx_memory_entries_accessed_at ON memory_entries(accessed_at DESC);
`

// Store inserts a new memory entry and records its assigned ID in
// entry.ID.
func (s *Store) Store(ctx context.Context, entry *Entry) error {
	if entry.Metadata.AccessedAt.IsZero() {
		entry.Metadata.AccessedAt = time.Now()
	}
	if entry.Metadata.DecayFactor == 0 {
		entry.Metadata.DecayFactor = 1
	}

	query := `INSERT INTO memory_entries
		(type, content, importance, accessed_at, access_count, decay_factor, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		string(entry.Type),
		entry.Content,
		entry.Metadata.Importance,
		entry.Metadata.AccessedAt,
		entry.Metadata.AccessCount,
		entry.Metadata.DecayFactor,
		encodeEmbedding(entry.Embedding),
	)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Memory, "memory.store", fmt.Errorf("insert memory entry: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return cortexerr.Wrap(cortexerr.Memory, "memory.store", fmt.Errorf("get last insert id: %w", err))
	}
	entry.ID = id
	return nil
}

// Recall touches accessedAt/accessCount and returns the entry's current content.
func (s *Store) Recall(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, type, content, importance, accessed_at, access_count, decay_factor, embedding
		FROM memory_entries WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Memory, "memory.recall", err)
	}

	entry.Metadata.AccessCount++
	entry.Metadata.AccessedAt = time.Now()
	_, err = s.db.ExecContext(ctx, `UPDATE memory_entries SET accessed_at = ?, access_count = ? WHERE id = ?`,
		entry.Metadata.AccessedAt, entry.Metadata.AccessCount, id)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Memory, "memory.recall", fmt.Errorf("touch access stats: %w", err))
	}
	return entry, nil
}

// ByType returns all entries of the given kind, most recently accessed first.
func (s *Store) ByType(ctx context.Context, kind Kind) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, content, importance, accessed_at, access_count, decay_factor, embedding
		FROM memory_entries WHERE type = ? ORDER BY accessed_at DESC`, string(kind))
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Memory, "memory.by_type", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.Memory, "memory.by_type", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Memory, "memory.by_type", err)
	}
	return entries, nil
}

// Count returns the total number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_entries`).Scan(&n)
	if err != nil {
		return 0, cortexerr.Wrap(cortexerr.Memory, "memory.count", err)
	}
	return n, nil
}

// Delete removes an entry by ID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_entries WHERE id = ?`, id)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Memory, "memory.delete", err)
	}
	return nil
}

// All returns every stored entry, used by the evictor to score candidates.
func (s *Store) All(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, content, importance, accessed_at, access_count, decay_factor, embedding
		FROM memory_entries`)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Memory, "memory.all", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.Memory, "memory.all", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Memory, "memory.all", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	entry := &Entry{}
	var kind string
	var embeddingBlob []byte
	err := row.Scan(
		&entry.ID,
		&kind,
		&entry.Content,
		&entry.Metadata.Importance,
		&entry.Metadata.AccessedAt,
		&entry.Metadata.AccessCount,
		&entry.Metadata.DecayFactor,
		&embeddingBlob,
	)
	if err != nil {
		return nil, fmt.Errorf("scan memory entry: %w", err)
	}
	entry.Type = Kind(kind)
	entry.Embedding = decodeEmbedding(embeddingBlob)
	return entry, nil
}
