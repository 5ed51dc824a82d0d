// Package sqlite provides the SQLite-backed materials database store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	sqlitemigrate "github.com/oqmd/qmdb/internal/platform/storage/sqlitemigrate"
	"github.com/oqmd/qmdb/internal/storage"
	"github.com/oqmd/qmdb/internal/storage/sqlite/migrations"
)

// Store persists materials database state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// listClauses renders the filtering, ordering and paging tail of a list
// query along with its bound arguments.
func listClauses(query storage.Query, defaultOrder string) (where, tail string, args []any) {
	if strings.TrimSpace(query.Where) != "" {
		where = " WHERE " + query.Where
		args = append(args, query.Args...)
	}
	orderBy := strings.TrimSpace(query.OrderBy)
	if orderBy == "" {
		orderBy = defaultOrder
	}
	tail = " ORDER BY " + orderBy
	if query.Limit > 0 {
		tail += " LIMIT ?"
		args = append(args, query.Limit)
		if query.Offset > 0 {
			tail += " OFFSET ?"
			args = append(args, query.Offset)
		}
	}
	return where, tail, args
}

func (s *Store) countWhere(ctx context.Context, table, where string, args []any) (int64, error) {
	var total int64
	row := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+where, args...)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
