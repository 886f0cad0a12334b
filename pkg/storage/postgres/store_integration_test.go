//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

// setupPostgresStore starts a disposable PostgreSQL container and returns a migrated store
func setupPostgresStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("inkwell_test"),
		tcpostgres.WithUsername("inkwell"),
		tcpostgres.WithPassword("inkwell_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, ConnectionConfig{Driver: DriverPostgres, URL: connStr, MaxConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(ctx, db))
	return NewStore(db)
}

func TestPostgresStore_MembershipConstraints(t *testing.T) {
	ctx := context.Background()
	s := setupPostgresStore(t)

	owner := MustCreateUser(t, s, "owner@example.com", auth.TierBase)
	bob := MustCreateUser(t, s, "bob@example.com", auth.TierBase)

	ownerID := owner.ID
	ws := &storage.Workspace{ID: uuid.NewString(), Name: "Integration", OwnerID: owner.ID}
	require.NoError(t, s.CreateWorkspace(ctx, ws, &storage.Membership{
		ID: uuid.NewString(), UserID: &ownerID, Role: auth.RoleAdmin, InviteAccepted: true, InvitedBy: owner.ID,
	}))

	// two email-only invitations may coexist because NULL users are distinct
	for _, email := range []string{"a@example.com", "b@example.com"} {
		require.NoError(t, s.CreateMembership(ctx, &storage.Membership{
			ID: uuid.NewString(), WorkspaceID: ws.ID, InviteEmail: email, Role: auth.RoleViewer, InvitedBy: owner.ID,
		}))
	}

	count, err := s.CountMemberships(ctx, ws.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	bobID := bob.ID
	require.NoError(t, s.CreateMembership(ctx, &storage.Membership{
		ID: uuid.NewString(), WorkspaceID: ws.ID, UserID: &bobID, Role: auth.RoleEditor, InviteAccepted: true,
	}))
	err = s.CreateMembership(ctx, &storage.Membership{
		ID: uuid.NewString(), WorkspaceID: ws.ID, UserID: &bobID, Role: auth.RoleViewer, InviteAccepted: true,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	summaries, err := s.ListMemberWorkspaces(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, auth.RoleEditor, summaries[0].Role)

	require.NoError(t, s.DeleteWorkspace(ctx, ws.ID))
	members, err := s.ListMemberships(ctx, ws.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
}
