package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// DefaultTable is created by the built-in migrations
const DefaultTable = "trainer_state"

// PostgresStore keeps payloads in a PostgreSQL table
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string // quoted identifier
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	Table        string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresStore connects, runs the built-in migrations and makes sure
// the configured table exists
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(ctx, pool, Migrations()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	s := &PostgresStore{pool: pool, table: pq.QuoteIdentifier(table)}

	if table != DefaultTable {
		if err := s.ensureTable(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return s, nil
}

// ensureTable creates a custom-named state table with the default layout
func (s *PostgresStore) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        VARCHAR(255) PRIMARY KEY,
			data       BYTEA NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create state table %s: %w", s.table, err)
	}
	return nil
}

// Save upserts the payload under key
func (s *PostgresStore) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (key, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`, s.table)

	if _, err := s.pool.Exec(ctx, query, key, data); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Load returns the payload under key
func (s *PostgresStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE key = $1`, s.table)

	var data []byte
	if err := s.pool.QueryRow(ctx, query, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load state: %w", err)
	}
	return data, true, nil
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
