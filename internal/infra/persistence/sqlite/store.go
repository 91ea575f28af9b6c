// Package sqlite provides a SQLite-backed persistent store. Transactions run
// against the in-memory store; each commit is written to normalized tables in
// the same unit of work before it becomes visible.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"occupancy/internal/infra/persistence/memory"
	"occupancy/internal/infra/persistence/migrations"
	"occupancy/internal/infra/persistence/sqlstore"
	"occupancy/pkg/domain"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "occupancy.db"

// Dialect describes SQLite for the shared change writer.
var Dialect = sqlstore.Dialect{
	Name:       "sqlite",
	TextTime:   true,
	Constraint: uniqueConstraint,
}

func uniqueConstraint(err error) (string, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return "", false
	}
	if se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE && se.Code() != sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return "", false
	}
	msg := se.Error()
	if i := strings.Index(msg, "UNIQUE constraint failed: "); i >= 0 {
		msg = msg[i+len("UNIQUE constraint failed: "):]
	}
	return msg, true
}

// Store persists committed changes to SQLite while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path, applies migrations and
// hydrates the in-memory state from the tables.
func NewStore(ctx context.Context, path string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := migrations.Up(ctx, db, migrations.SQLite); err != nil {
		_ = db.Close()
		return nil, err
	}
	// SQLite allows one writer; commits from this process go through a single connection.
	db.SetMaxOpenConns(1)
	snapshot, err := sqlstore.Load(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, path: path}
	opts = append(opts, memory.WithCommitHook(s.commit))
	s.Store = memory.NewStore(engine, opts...)
	s.ImportState(snapshot)
	return s, nil
}

func (s *Store) commit(ctx context.Context, changes []domain.Change) error {
	return sqlstore.Commit(ctx, s.db, Dialect, changes)
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
