package workspaces

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/quota"
	"github.com/platinummonkey/inkwell/pkg/rbac"
	"github.com/platinummonkey/inkwell/pkg/storage"
	"github.com/platinummonkey/inkwell/pkg/storage/postgres"
)

func newService(t *testing.T) (*Service, *postgres.Store) {
	t.Helper()
	s := postgres.NewTestStore(t)
	return NewService(s, rbac.NewEngine(s, nil), quota.NewEngine(s, nil)), s
}

func join(t *testing.T, s *postgres.Store, ws *storage.Workspace, u *auth.User, role auth.Role) {
	t.Helper()
	uid := u.ID
	require.NoError(t, s.CreateMembership(context.Background(), &storage.Membership{
		ID:             uuid.NewString(),
		WorkspaceID:    ws.ID,
		UserID:         &uid,
		Role:           role,
		InviteAccepted: true,
		InvitedBy:      ws.OwnerID,
	}))
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)
	owner := postgres.MustCreateUser(t, s, "owner@example.com", auth.TierBase)

	ws, err := svc.Create(ctx, owner, CreateRequest{Name: "  Marketing ", Description: "Campaigns"})
	require.NoError(t, err)
	assert.Equal(t, "Marketing", ws.Name)
	assert.Equal(t, owner.ID, ws.OwnerID)

	m, err := s.FindMembership(ctx, ws.ID, owner.ID)
	require.NoError(t, err, "owner gets an Admin membership")
	assert.Equal(t, auth.RoleAdmin, m.Role)
	assert.True(t, m.IsActive())
}

func TestService_Create_Validation(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)
	owner := postgres.MustCreateUser(t, s, "owner@example.com", auth.TierBase)

	tests := []struct {
		name string
		req  CreateRequest
		msg  string
	}{
		{"blank name", CreateRequest{Name: "   "}, MsgNameRequired},
		{"long name", CreateRequest{Name: strings.Repeat("n", 51)}, MsgNameTooLong},
		{"long description", CreateRequest{Name: "ok", Description: strings.Repeat("d", 501)}, MsgDescTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, owner, tt.req)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, tt.msg, apperr.PublicMessage(err))
		})
	}

	_, err := svc.Create(ctx, owner, CreateRequest{Name: strings.Repeat("n", 50), Description: strings.Repeat("d", 500)})
	assert.NoError(t, err)
}

func TestService_Create_Quota(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)

	base := postgres.MustCreateUser(t, s, "base@example.com", auth.TierBase)
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, base, CreateRequest{Name: "ws"})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, base, CreateRequest{Name: "ws"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindQuotaExceeded, apperr.KindOf(err))
	assert.Equal(t, "Your base plan allows a maximum of 3 workspaces", apperr.PublicMessage(err))

	pro := postgres.MustCreateUser(t, s, "pro@example.com", auth.TierPro)
	for i := 0; i < 10; i++ {
		_, err := svc.Create(ctx, pro, CreateRequest{Name: "ws"})
		require.NoError(t, err, "workspace %d", i+1)
	}
	_, err = svc.Create(ctx, pro, CreateRequest{Name: "ws"})
	assert.Equal(t, apperr.KindQuotaExceeded, apperr.KindOf(err))
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)
	alice := postgres.MustCreateUser(t, s, "alice@example.com", auth.TierBase)
	bob := postgres.MustCreateUser(t, s, "bob@example.com", auth.TierBase)

	own, err := svc.Create(ctx, alice, CreateRequest{Name: "Alice's"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, bob, CreateRequest{Name: "Bob's"})
	require.NoError(t, err)
	hidden, err := svc.Create(ctx, bob, CreateRequest{Name: "Bob's private"})
	require.NoError(t, err)
	join(t, s, other, alice, auth.RoleEditor)

	uid := alice.ID
	require.NoError(t, s.CreateMembership(ctx, &storage.Membership{
		ID: uuid.NewString(), WorkspaceID: hidden.ID, UserID: &uid, Role: auth.RoleAdmin, InvitedBy: bob.ID,
	}))

	list, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2, "owned once, plus accepted memberships only")

	assert.Equal(t, own.ID, list[0].ID)
	assert.Equal(t, auth.RoleOwner, list[0].Role)
	assert.Equal(t, other.ID, list[1].ID)
	assert.Equal(t, auth.RoleEditor, list[1].Role)

	empty, err := svc.List(ctx, postgres.MustCreateUser(t, s, "new@example.com", auth.TierBase))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestService_GetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)
	owner := postgres.MustCreateUser(t, s, "owner@example.com", auth.TierBase)
	admin := postgres.MustCreateUser(t, s, "admin@example.com", auth.TierBase)
	editor := postgres.MustCreateUser(t, s, "editor@example.com", auth.TierBase)
	stranger := postgres.MustCreateUser(t, s, "stranger@example.com", auth.TierBase)

	ws, err := svc.Create(ctx, owner, CreateRequest{Name: "Team"})
	require.NoError(t, err)
	join(t, s, ws, admin, auth.RoleAdmin)
	join(t, s, ws, editor, auth.RoleEditor)

	t.Run("get", func(t *testing.T) {
		got, err := svc.Get(ctx, editor, ws.ID)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleEditor, got.Role)

		got, err = svc.Get(ctx, owner, ws.ID)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleOwner, got.Role)

		_, err = svc.Get(ctx, stranger, ws.ID)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

		_, err = svc.Get(ctx, owner, uuid.NewString())
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("update", func(t *testing.T) {
		name := "Renamed"
		_, err := svc.Update(ctx, editor, ws.ID, UpdateRequest{Name: &name})
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

		updated, err := svc.Update(ctx, admin, ws.ID, UpdateRequest{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)

		blank := ""
		_, err = svc.Update(ctx, owner, ws.ID, UpdateRequest{Name: &blank})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

		got, err := s.GetWorkspace(ctx, ws.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
	})

	t.Run("delete", func(t *testing.T) {
		err := svc.Delete(ctx, admin, ws.ID)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
		assert.Equal(t, MsgCannotDelete, apperr.PublicMessage(err))

		require.NoError(t, svc.Delete(ctx, owner, ws.ID))

		_, err = s.GetWorkspace(ctx, ws.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.FindMembership(ctx, ws.ID, admin.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound, "memberships cascade")

		err = svc.Delete(ctx, owner, ws.ID)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}
