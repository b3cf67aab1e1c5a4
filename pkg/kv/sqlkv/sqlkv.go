// Package sqlkv implements kv.Backend on a single database/sql table. SQLite,
// DuckDB, and Postgres share the schema; only placeholders differ. Callers
// register the driver they need with a blank import.
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goliatone/go-dashboard-builder/pkg/kv"
)

// DefaultTable is the table used when Options.Table is empty.
const DefaultTable = "board_kv"

// Dialect captures the per-database differences.
type Dialect struct {
	Name   string
	Driver string
	// Numbered selects $1 style placeholders instead of ?.
	Numbered bool
}

var (
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite"}
	DuckDB   = Dialect{Name: "duckdb", Driver: "duckdb"}
	Postgres = Dialect{Name: "postgres", Driver: "postgres", Numbered: true}
)

// DialectFor resolves a dialect by name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "duckdb":
		return DuckDB, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("sqlkv: unknown dialect %q", name)
	}
}

func (d Dialect) bind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Options configures a Store.
type Options struct {
	Dialect Dialect
	Table   string
}

// Store is a kv.Backend on database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	owned   bool
}

var _ kv.Backend = (*Store)(nil)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open connects with the dialect's driver and ensures the table exists.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlkv: dsn is required")
	}
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlkv: open %s: %w", dialect.Name, err)
	}
	if dialect == SQLite {
		// modernc sqlite serializes writers; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	store, err := New(ctx, db, Options{Dialect: dialect})
	if err != nil {
		db.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// New reuses an existing *sql.DB and ensures the table exists.
func New(ctx context.Context, db *sql.DB, opts Options) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlkv: db is required")
	}
	if opts.Dialect.Driver == "" {
		opts.Dialect = SQLite
	}
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("sqlkv: invalid table name %q", opts.Table)
	}
	s := &Store{db: db, dialect: opts.Dialect, table: opts.Table}
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  key TEXT NOT NULL PRIMARY KEY,
  value TEXT NOT NULL,
  version BIGINT NOT NULL DEFAULT 0,
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlkv: ensure table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) q(format string) string {
	return s.dialect.bind(fmt.Sprintf(format, s.table))
}

func (s *Store) Get(ctx context.Context, key string) (kv.Record, bool, error) {
	var (
		rec   kv.Record
		value string
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT value, version FROM %s WHERE key = ?`), key).Scan(&value, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return kv.Record{}, false, nil
	}
	if err != nil {
		return kv.Record{}, false, fmt.Errorf("sqlkv: get %s: %w", key, err)
	}
	rec.Value = []byte(value)
	return rec, true, nil
}

// Put writes value. With expectedVersion > 0 the write is a single
// conditional UPDATE so concurrent writers cannot both win.
func (s *Store) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	if expectedVersion > 0 {
		return s.swap(ctx, key, value, expectedVersion)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlkv: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`UPDATE %s SET value = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE key = ?`), string(value), key)
	if err != nil {
		return 0, fmt.Errorf("sqlkv: update %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlkv: update %s: %w", key, err)
	}
	if n == 0 {
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO %s (key, value, version) VALUES (?, ?, 1)`), key, string(value)); err != nil {
			tx.Rollback()
			return 0, s.insertConflict(ctx, key, err)
		}
		if err := tx.Commit(); err != nil {
			return 0, s.insertConflict(ctx, key, err)
		}
		return 1, nil
	}
	var next int64
	if err := tx.QueryRowContext(ctx, s.q(`SELECT version FROM %s WHERE key = ?`), key).Scan(&next); err != nil {
		return 0, fmt.Errorf("sqlkv: read version %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlkv: commit: %w", err)
	}
	return next, nil
}

func (s *Store) swap(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE %s SET value = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE key = ? AND version = ?`), string(value), key, expected)
	if err != nil {
		return 0, fmt.Errorf("sqlkv: update %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlkv: update %s: %w", key, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("sqlkv: %s is not at version %d: %w", key, expected, kv.ErrVersionMismatch)
	}
	return expected + 1, nil
}

// insertConflict reports a failed first write as a version mismatch when
// another writer created the key in the meantime.
func (s *Store) insertConflict(ctx context.Context, key string, cause error) error {
	if _, ok, err := s.Get(ctx, key); err == nil && ok {
		return fmt.Errorf("sqlkv: %s created concurrently: %w", key, kv.ErrVersionMismatch)
	}
	return fmt.Errorf("sqlkv: insert %s: %w", key, cause)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM %s WHERE key = ?`), key); err != nil {
		return fmt.Errorf("sqlkv: delete %s: %w", key, err)
	}
	return nil
}

// Close closes the database when Open created it.
func (s *Store) Close() error {
	if s.owned && s.db != nil {
		return s.db.Close()
	}
	return nil
}
