package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver for local development and tests
)

// Supported database/sql driver names
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	Driver      string
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// Open connects to the configured database, applies pool settings and pings it
func Open(ctx context.Context, config ConnectionConfig) (*sql.DB, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	dsn := config.URL
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer; in-memory databases are per connection.
		db.SetMaxOpenConns(1)
	} else {
		if config.MaxConns > 0 {
			db.SetMaxOpenConns(config.MaxConns)
		}
		if config.MinConns > 0 {
			db.SetMaxIdleConns(config.MinConns)
		}
		db.SetConnMaxLifetime(config.MaxLifetime)
		db.SetConnMaxIdleTime(config.MaxIdleTime)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// sqliteDSN turns on foreign key enforcement, which SQLite leaves off by default
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}
