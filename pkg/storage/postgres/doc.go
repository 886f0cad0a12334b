// Package postgres implements storage.Store with database/sql.
//
// # Overview
//
// PostgreSQL (github.com/lib/pq) is the production backend. The same SQL
// runs on SQLite (github.com/mattn/go-sqlite3), which backs local
// development and the test suites. Queries use $N placeholders in
// first-appearance order and pass every timestamp from Go in UTC so the two
// engines behave the same.
//
// # Usage Example
//
//	db, err := postgres.Open(ctx, postgres.ConnectionConfig{
//		Driver:   postgres.DriverPostgres,
//		URL:      "postgres://inkwell@localhost/inkwell?sslmode=disable",
//		MaxConns: 20,
//	})
//	if err != nil {
//		return err
//	}
//	if err := postgres.RunMigrations(ctx, db); err != nil {
//		return err
//	}
//	store := postgres.NewStore(db)
//
// # Constraints
//
// The schema enforces the membership invariants: one membership per
// (workspace, user) pair, with NULL users excluded, and no accepted
// membership without a user. Unique violations from either driver surface
// as storage.ErrDuplicate.
//
// # Redis
//
// NewRedisClient builds the optional Redis client used by the distributed
// rate limiter and the readiness probe.
package postgres
