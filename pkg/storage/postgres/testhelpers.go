package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/inkwell/pkg/auth"
)

// NewTestStore returns a migrated store backed by a private in-memory SQLite database
func NewTestStore(t testing.TB) *Store {
	t.Helper()

	db, err := Open(context.Background(), ConnectionConfig{Driver: DriverSQLite, URL: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return NewStore(db)
}

// MustCreateUser inserts a user with the given verified email and tier
func MustCreateUser(t testing.TB, s *Store, email string, tier auth.Tier) *auth.User {
	t.Helper()

	u := &auth.User{
		ID:            uuid.NewString(),
		ExternalID:    "ext|" + uuid.NewString(),
		Name:          email,
		Email:         email,
		EmailVerified: true,
		Tier:          tier,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return u
}

// SkipIfNoDatabase skips the test if TEST_POSTGRES_URL is not set.
// It returns the connection URL otherwise.
func SkipIfNoDatabase(t testing.TB) string {
	t.Helper()

	dbURL := os.Getenv("TEST_POSTGRES_URL")
	if dbURL == "" {
		t.Skip("Skipping test: TEST_POSTGRES_URL environment variable not set (database not available)")
	}
	return dbURL
}
