package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/inkwell/pkg/storage"
)

// Store implements storage.Store on database/sql
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// NewStore wraps an open database. Run RunMigrations before first use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks and metrics
func (s *Store) DB() *sql.DB {
	return s.db
}

// HealthCheck verifies the database answers queries
func (s *Store) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database unhealthy: %w", err)
	}
	return nil
}

// isUniqueViolation recognises unique constraint failures from both drivers
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// writeErr maps driver errors on insert and update
func writeErr(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to %s: %w", op, storage.ErrDuplicate)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// readErr maps sql.ErrNoRows to storage.ErrNotFound
func readErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// expectRow returns ErrNotFound when an update or delete matched nothing
func expectRow(op string, result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}
