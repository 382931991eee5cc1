package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_state (
	key             TEXT PRIMARY KEY,
	data            BLOB NOT NULL,
	updated_at_unix INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore keeps payloads in a local SQLite file. It is the default
// backend on a headset, where no database server is available.
type SQLiteStore struct {
	db        *sql.DB
	closeOnce sync.Once
}

// NewSQLiteStore opens (creating if needed) the database at path
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Single writer; WAL still allows concurrent readers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save upserts the payload under key
func (s *SQLiteStore) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	query := `
		INSERT INTO kv_state (key, data, updated_at_unix)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at_unix = excluded.updated_at_unix
	`
	if _, err := s.db.ExecContext(ctx, query, key, data, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Load returns the payload under key
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM kv_state WHERE key = ?`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load state: %w", err)
	}
	return data, true, nil
}

// Ping checks database connectivity
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}
