// Package sqlstore provides SQL storage for session keys. The same store
// serves a device-local SQLite database and a shared PostgreSQL database;
// only the placeholder format and the migration driver differ.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/bmusic-client/pkg/session"
)

// Dialect selects the SQL flavor.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// defaultTable is the table created by the embedded migrations.
const defaultTable = "session_kv"

// Store implements session.Store using database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	sb      sq.StatementBuilderType
	now     func() time.Time
}

// Config configures the SQL session store.
type Config struct {
	Dialect Dialect
	Table   string
}

// New creates a new SQL session store.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectSQLite
	}
	return &Store{
		db:      db,
		dialect: cfg.Dialect,
		table:   cfg.Table,
		sb:      sq.StatementBuilder.PlaceholderFormat(placeholder(cfg.Dialect)),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// placeholder returns the bind variable format for a dialect.
func placeholder(d Dialect) sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := s.sb.Select("value").From(s.table).Where(sq.Eq{"name": key}).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("building select: %w", err)
	}

	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("selecting session key: %w", err)
	}
	return value, true, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	query, args, err := s.sb.Insert(s.table).
		Columns("name", "value", "updated_at").
		Values(key, value, s.now()).
		Suffix("ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting session key: %w", err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	query, args, err := s.sb.Delete(s.table).Where(sq.Eq{"name": key}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting session key: %w", err)
	}
	return nil
}

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing session database: %w", err)
	}
	return nil
}

// Verify interface compliance.
var _ session.Store = (*Store)(nil)
