package teams

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/notify"
	"github.com/platinummonkey/inkwell/pkg/observability"
	"github.com/platinummonkey/inkwell/pkg/quota"
	"github.com/platinummonkey/inkwell/pkg/rbac"
	"github.com/platinummonkey/inkwell/pkg/storage"
	"github.com/platinummonkey/inkwell/pkg/storage/postgres"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notify.Invitation
	err  error
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) NotifyInvitation(ctx context.Context, inv *notify.Invitation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, inv)
	return n.err
}

type fixture struct {
	store    *postgres.Store
	svc      *Service
	notifier *recordingNotifier
	metrics  *observability.Metrics
	owner    *auth.User
	ws       *storage.Workspace
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := postgres.NewTestStore(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	notifier := &recordingNotifier{}

	svc := NewService(s, rbac.NewEngine(s, metrics), quota.NewEngine(s, metrics), notifier, metrics, "http://localhost:3000/")

	owner := postgres.MustCreateUser(t, s, "owner@example.com", auth.TierBase)
	owner.Name = "Olivia Owner"
	ws := &storage.Workspace{ID: uuid.NewString(), Name: "Marketing", OwnerID: owner.ID}
	ownerID := owner.ID
	require.NoError(t, s.CreateWorkspace(context.Background(), ws, &storage.Membership{
		ID:             uuid.NewString(),
		UserID:         &ownerID,
		Role:           auth.RoleAdmin,
		InviteAccepted: true,
		InvitedBy:      owner.ID,
	}))

	return &fixture{store: s, svc: svc, notifier: notifier, metrics: metrics, owner: owner, ws: ws}
}

func (f *fixture) addMember(t *testing.T, email string, role auth.Role) *auth.User {
	t.Helper()
	u := postgres.MustCreateUser(t, f.store, email, auth.TierBase)
	_, err := f.svc.AddDirectly(context.Background(), f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: email, Role: string(role)})
	require.NoError(t, err)
	return u
}

// orphan stores m in a throwaway workspace, then drops the workspace row
// without cascading, as a concurrent workspace delete can leave it behind.
func (f *fixture) orphan(t *testing.T, m *storage.Membership) {
	t.Helper()
	ctx := context.Background()
	ws := &storage.Workspace{ID: uuid.NewString(), Name: "Doomed", OwnerID: f.owner.ID}
	ownerID := f.owner.ID
	require.NoError(t, f.store.CreateWorkspace(ctx, ws, &storage.Membership{
		ID:             uuid.NewString(),
		UserID:         &ownerID,
		Role:           auth.RoleAdmin,
		InviteAccepted: true,
		InvitedBy:      f.owner.ID,
	}))
	m.ID = uuid.NewString()
	m.WorkspaceID = ws.ID
	require.NoError(t, f.store.CreateMembership(ctx, m))

	db := f.store.DB()
	_, err := db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, ws.ID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `PRAGMA foreign_keys = ON`)
	require.NoError(t, err)
}

func assertKind(t *testing.T, err error, kind apperr.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), err.Error())
	if msg != "" {
		assert.Equal(t, msg, apperr.PublicMessage(err))
	}
}

func TestService_InviteAcceptScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: " Bob@X.com ", Role: "Editor"})
	require.NoError(t, err)
	assert.Empty(t, res.Warning)
	assert.Equal(t, "http://localhost:3000/invite/"+res.Membership.ID, res.InviteURL)
	assert.Equal(t, "bob@x.com", res.Membership.InviteEmail)
	assert.Equal(t, storage.StatePending, res.Membership.State())
	assert.Nil(t, res.Membership.UserID)

	require.Len(t, f.notifier.sent, 1)
	sent := f.notifier.sent[0]
	assert.Equal(t, "bob@x.com", sent.Email)
	assert.Equal(t, "Marketing", sent.WorkspaceName)
	assert.Equal(t, "Editor", sent.Role)
	assert.Equal(t, "Olivia Owner", sent.InviterName)
	assert.Equal(t, res.InviteURL, sent.InviteURL)

	_, err = f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "bob@x.com", Role: "Editor"})
	assertKind(t, err, apperr.KindConflict, MsgInviteExists)

	mallory := postgres.MustCreateUser(t, f.store, "mallory@x.com", auth.TierBase)
	_, err = f.svc.Accept(ctx, mallory, res.Membership.ID)
	assertKind(t, err, apperr.KindForbidden, MsgDifferentEmail)

	bob := postgres.MustCreateUser(t, f.store, "bob@x.com", auth.TierBase)
	accepted, err := f.svc.Accept(ctx, bob, res.Membership.ID)
	require.NoError(t, err)
	assert.False(t, accepted.AlreadyAccepted)
	assert.Equal(t, MsgAcceptedSuccessfully, accepted.Message())
	assert.True(t, accepted.Membership.IsActive())
	assert.True(t, accepted.Membership.BoundTo(bob.ID))

	again, err := f.svc.Accept(ctx, bob, res.Membership.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyAccepted)
	assert.Equal(t, MsgAlreadyAccepted, again.Message())
	assert.Equal(t, accepted.Membership.UpdatedAt, again.Membership.UpdatedAt)

	// Bob is an Editor now: not allowed to perform Admin operations
	authz := rbac.NewEngine(f.store, nil)
	_, err = authz.Require(ctx, bob, f.ws.ID, rbac.AdminOnly)
	assertKind(t, err, apperr.KindForbidden, rbac.MsgForbidden)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.InvitationEventsTotal.WithLabelValues("invited")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.InvitationEventsTotal.WithLabelValues("accepted")))
}

func TestService_Invite_QuotaCountsPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, email := range []string{"a@x.com", "b@x.com"} {
		_, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: email, Role: "Viewer"})
		require.NoError(t, err)
	}

	_, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "c@x.com", Role: "Viewer"})
	assertKind(t, err, apperr.KindQuotaExceeded, "Your base plan allows a maximum of 2 members per workspace")

	postgres.MustCreateUser(t, f.store, "d@x.com", auth.TierBase)
	_, err = f.svc.AddDirectly(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "d@x.com", Role: "Viewer"})
	assertKind(t, err, apperr.KindQuotaExceeded, "")

	members, err := f.svc.List(ctx, f.owner, f.ws.ID)
	require.NoError(t, err)
	assert.Len(t, members, 3, "owner membership plus two invitations")
}

func TestService_Invite_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		req  AddRequest
		msg  string
	}{
		{"missing workspace", AddRequest{Email: "a@x.com", Role: "Viewer"}, MsgMissingFields},
		{"missing email", AddRequest{WorkspaceID: f.ws.ID, Role: "Viewer"}, MsgMissingFields},
		{"missing role", AddRequest{WorkspaceID: f.ws.ID, Email: "a@x.com"}, MsgMissingFields},
		{"unknown role", AddRequest{WorkspaceID: f.ws.ID, Email: "a@x.com", Role: "Owner"}, MsgInvalidRole},
		{"bad email", AddRequest{WorkspaceID: f.ws.ID, Email: "not-an-email", Role: "Viewer"}, MsgInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Invite(ctx, f.owner, tt.req)
			assertKind(t, err, apperr.KindValidation, tt.msg)
		})
	}
	assert.Empty(t, f.notifier.sent)
}

func TestService_Invite_Authorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	editor := f.addMember(t, "editor@x.com", auth.RoleEditor)
	admin := f.addMember(t, "admin@x.com", auth.RoleAdmin)

	_, err := f.svc.Invite(ctx, editor, AddRequest{WorkspaceID: f.ws.ID, Email: "z@x.com", Role: "Viewer"})
	assertKind(t, err, apperr.KindForbidden, rbac.MsgForbidden)

	// quota is not consulted before authorization; quota is full here
	_, err = f.svc.Invite(ctx, admin, AddRequest{WorkspaceID: f.ws.ID, Email: "z@x.com", Role: "Viewer"})
	assertKind(t, err, apperr.KindQuotaExceeded, "")

	_, err = f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: uuid.NewString(), Email: "z@x.com", Role: "Viewer"})
	assertKind(t, err, apperr.KindNotFound, rbac.MsgWorkspaceNotFound)
}

func TestService_Invite_ExistingMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addMember(t, "member@x.com", auth.RoleViewer)

	_, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "MEMBER@x.com", Role: "Editor"})
	assertKind(t, err, apperr.KindConflict, MsgAlreadyMember)
}

func TestService_Invite_KnownUserIsBound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	carol := postgres.MustCreateUser(t, f.store, "carol@x.com", auth.TierBase)

	res, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "carol@x.com", Role: "Viewer"})
	require.NoError(t, err)
	require.NotNil(t, res.Membership.UserID)
	assert.True(t, res.Membership.BoundTo(carol.ID))

	// a pending bound invitation grants nothing
	authz := rbac.NewEngine(f.store, nil)
	d, err := authz.Authorize(ctx, carol, f.ws.ID, rbac.AnyRole)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, rbac.ReasonPendingInvite, d.Reason)

	accepted, err := f.svc.Accept(ctx, carol, res.Membership.ID)
	require.NoError(t, err)
	assert.True(t, accepted.Membership.IsActive())
}

func TestService_Invite_NotifierFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")

	res, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "a@x.com", Role: "Viewer"})
	require.NoError(t, err)
	assert.Equal(t, MsgNotifyFailed, res.Warning)

	_, err = f.store.GetMembership(ctx, res.Membership.ID)
	assert.NoError(t, err, "membership survives notifier failure")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.NotificationFailuresTotal.WithLabelValues("recording")))
}

func TestService_AddDirectly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddDirectly(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "ghost@x.com", Role: "Viewer"})
	assertKind(t, err, apperr.KindNotFound, "User with email ghost@x.com not found")

	dave := postgres.MustCreateUser(t, f.store, "dave@x.com", auth.TierBase)
	m, err := f.svc.AddDirectly(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "dave@x.com", Role: "Editor"})
	require.NoError(t, err)
	assert.True(t, m.IsActive())
	assert.True(t, m.BoundTo(dave.ID))
	assert.Equal(t, auth.RoleEditor, m.Role)
	assert.Empty(t, f.notifier.sent, "direct add does not notify")

	_, err = f.svc.AddDirectly(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "dave@x.com", Role: "Viewer"})
	assertKind(t, err, apperr.KindConflict, MsgAlreadyTeamMember)

	_, err = f.svc.AddDirectly(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "owner@example.com", Role: "Viewer"})
	assertKind(t, err, apperr.KindConflict, MsgAlreadyTeamMember)
}

func TestService_Accept_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Accept(ctx, f.owner, uuid.NewString())
	assertKind(t, err, apperr.KindNotFound, MsgInvitationNotFound)

	_, err = f.svc.Accept(ctx, nil, uuid.NewString())
	assertKind(t, err, apperr.KindUnauthenticated, "")

	// bound invitation with no email, accepted by someone else
	erin := postgres.MustCreateUser(t, f.store, "erin@x.com", auth.TierBase)
	frank := postgres.MustCreateUser(t, f.store, "frank@x.com", auth.TierBase)
	erinID := erin.ID
	m := &storage.Membership{ID: uuid.NewString(), WorkspaceID: f.ws.ID, UserID: &erinID, Role: auth.RoleViewer, InvitedBy: f.owner.ID}
	require.NoError(t, f.store.CreateMembership(ctx, m))

	_, err = f.svc.Accept(ctx, frank, m.ID)
	assertKind(t, err, apperr.KindForbidden, MsgNotInvitee)

	res, err := f.svc.Accept(ctx, erin, m.ID)
	require.NoError(t, err)
	assert.True(t, res.Membership.IsActive())
}

func createUnverifiedUser(t *testing.T, s *postgres.Store, email string) *auth.User {
	t.Helper()
	u := &auth.User{
		ID:         uuid.NewString(),
		ExternalID: "ext|" + uuid.NewString(),
		Name:       "Unverified",
		Email:      email,
		Tier:       auth.TierBase,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestService_Accept_RequiresVerifiedEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	authz := rbac.NewEngine(f.store, nil)

	res, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "victim@x.com", Role: "Admin"})
	require.NoError(t, err)
	require.Nil(t, res.Membership.UserID)

	impostor := createUnverifiedUser(t, f.store, "victim@x.com")
	_, err = f.svc.Accept(ctx, impostor, res.Membership.ID)
	assertKind(t, err, apperr.KindForbidden, MsgEmailUnverified)

	d, err := authz.Authorize(ctx, impostor, f.ws.ID, rbac.AdminOnly)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	m, err := f.store.GetMembership(ctx, res.Membership.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatePending, m.State())

	victim := postgres.MustCreateUser(t, f.store, "victim@x.com", auth.TierBase)
	accepted, err := f.svc.Accept(ctx, victim, res.Membership.ID)
	require.NoError(t, err)
	assert.True(t, accepted.Membership.BoundTo(victim.ID))
}

func TestService_Accept_BoundToUnverifiedUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	hank := createUnverifiedUser(t, f.store, "hank@x.com")
	res, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "hank@x.com", Role: "Editor"})
	require.NoError(t, err)
	require.True(t, res.Membership.BoundTo(hank.ID))

	_, err = f.svc.Accept(ctx, hank, res.Membership.ID)
	assertKind(t, err, apperr.KindForbidden, MsgEmailUnverified)
}

func TestService_Accept_CallerWithoutEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "ivy@x.com", Role: "Viewer"})
	require.NoError(t, err)

	anonymous := createUnverifiedUser(t, f.store, "")
	anonymous.EmailVerified = true
	_, err = f.svc.Accept(ctx, anonymous, res.Membership.ID)
	assertKind(t, err, apperr.KindForbidden, MsgDifferentEmail)
}

func TestService_PlaceholderEmailRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, email := range []string{auth.PlaceholderEmail, " USER@example.com "} {
		_, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: email, Role: "Admin"})
		assertKind(t, err, apperr.KindValidation, MsgInvalidEmail)

		_, err = f.svc.AddDirectly(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: email, Role: "Admin"})
		assertKind(t, err, apperr.KindValidation, MsgInvalidEmail)
	}
	assert.Empty(t, f.notifier.sent)
}

func TestService_Accept_DuplicateMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gina := f.addMember(t, "gina@x.com", auth.RoleViewer)

	// an email-only invitation for the same address created before gina joined
	m := &storage.Membership{ID: uuid.NewString(), WorkspaceID: f.ws.ID, InviteEmail: "gina@x.com", Role: auth.RoleEditor, InvitedBy: f.owner.ID}
	require.NoError(t, f.store.CreateMembership(ctx, m))

	_, err := f.svc.Accept(ctx, gina, m.ID)
	assertKind(t, err, apperr.KindConflict, MsgAlreadyMember)
}

func TestService_UpdateRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.addMember(t, "admin@x.com", auth.RoleAdmin)
	editor := f.addMember(t, "editor@x.com", auth.RoleEditor)

	target, err := f.store.FindMembership(ctx, f.ws.ID, editor.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateRole(ctx, f.owner, target.ID, "")
	assertKind(t, err, apperr.KindValidation, MsgMissingRole)
	_, err = f.svc.UpdateRole(ctx, f.owner, target.ID, "Superuser")
	assertKind(t, err, apperr.KindValidation, MsgInvalidRole)

	_, err = f.svc.UpdateRole(ctx, editor, target.ID, "Admin")
	assertKind(t, err, apperr.KindForbidden, rbac.MsgForbidden)

	updated, err := f.svc.UpdateRole(ctx, admin, target.ID, "Viewer")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleViewer, updated.Role)
	assert.True(t, updated.IsActive())

	_, err = f.svc.UpdateRole(ctx, f.owner, uuid.NewString(), "Viewer")
	assertKind(t, err, apperr.KindNotFound, rbac.MsgMemberNotFound)
}

func TestService_Remove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.addMember(t, "admin@x.com", auth.RoleAdmin)

	res, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "temp@x.com", Role: "Viewer"})
	require.NoError(t, err)

	outsider := postgres.MustCreateUser(t, f.store, "outsider@x.com", auth.TierBase)
	_, err = f.svc.Remove(ctx, outsider, res.Membership.ID)
	assertKind(t, err, apperr.KindForbidden, MsgCannotRemove)

	removed, err := f.svc.Remove(ctx, admin, res.Membership.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = f.svc.Remove(ctx, admin, res.Membership.ID)
	require.NoError(t, err, "removing a missing membership is a no-op")
	assert.False(t, removed)

	_, err = f.svc.Remove(ctx, nil, res.Membership.ID)
	assertKind(t, err, apperr.KindUnauthenticated, "")
}

func TestService_Remove_OrphanedMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	orphan := &storage.Membership{InviteEmail: "x@x.com", Role: auth.RoleViewer}
	f.orphan(t, orphan)

	stranger := postgres.MustCreateUser(t, f.store, "stranger@x.com", auth.TierBase)
	removed, err := f.svc.Remove(ctx, stranger, orphan.ID)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestService_Resend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return base }

	res, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "h@x.com", Role: "Viewer"})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return base.Add(time.Hour) }
	again, err := f.svc.Resend(ctx, f.owner, res.Membership.ID)
	require.NoError(t, err)
	assert.Equal(t, res.InviteURL, again.InviteURL)
	assert.Equal(t, "Invitation resent to h@x.com", again.Message)
	assert.Len(t, f.notifier.sent, 2)

	m, err := f.store.GetMembership(ctx, res.Membership.ID)
	require.NoError(t, err)
	assert.True(t, m.UpdatedAt.Equal(base.Add(time.Hour)))
	assert.Equal(t, storage.StatePending, m.State())

	f.notifier.err = errors.New("down")
	again, err = f.svc.Resend(ctx, f.owner, res.Membership.ID)
	require.NoError(t, err)
	assert.Equal(t, MsgNotifyFailed, again.Warning)

	_, err = f.svc.Resend(ctx, f.owner, uuid.NewString())
	assertKind(t, err, apperr.KindNotFound, MsgInvitationNotFound)
}

func TestService_Resend_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	viewer := f.addMember(t, "viewer@x.com", auth.RoleViewer)

	active, err := f.store.FindMembership(ctx, f.ws.ID, viewer.ID)
	require.NoError(t, err)
	_, err = f.svc.Resend(ctx, f.owner, active.ID)
	assertKind(t, err, apperr.KindConflict, MsgResendAccepted)

	ivyUser := postgres.MustCreateUser(t, f.store, "ivy@x.com", auth.TierBase)
	ivyID := ivyUser.ID
	noEmail := &storage.Membership{ID: uuid.NewString(), WorkspaceID: f.ws.ID, UserID: &ivyID, Role: auth.RoleViewer}
	require.NoError(t, f.store.CreateMembership(ctx, noEmail))
	_, err = f.svc.Resend(ctx, f.owner, noEmail.ID)
	assertKind(t, err, apperr.KindValidation, MsgResendNoEmail)

	_, err = f.svc.Resend(ctx, viewer, noEmail.ID)
	assertKind(t, err, apperr.KindForbidden, rbac.MsgForbidden)
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.addMember(t, "admin@x.com", auth.RoleAdmin)
	viewer := f.addMember(t, "viewer@x.com", auth.RoleViewer)
	stranger := postgres.MustCreateUser(t, f.store, "stranger@x.com", auth.TierBase)

	pending := &storage.Membership{ID: uuid.NewString(), WorkspaceID: f.ws.ID, InviteEmail: "j@x.com", Role: auth.RoleViewer, InvitedBy: f.owner.ID}
	require.NoError(t, f.store.CreateMembership(ctx, pending))

	preview, err := f.svc.Get(ctx, stranger, pending.ID)
	require.NoError(t, err, "pending invitations are viewable by id")
	assert.Equal(t, "Marketing", preview.WorkspaceName)
	assert.Equal(t, "owner@example.com", preview.InviterName)

	viewerMembership, err := f.store.FindMembership(ctx, f.ws.ID, viewer.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, viewer, viewerMembership.ID)
	assert.NoError(t, err, "members can view themselves")
	_, err = f.svc.Get(ctx, admin, viewerMembership.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, f.owner, viewerMembership.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, stranger, viewerMembership.ID)
	assertKind(t, err, apperr.KindForbidden, MsgCannotView)

	_, err = f.svc.Get(ctx, stranger, uuid.NewString())
	assertKind(t, err, apperr.KindNotFound, MsgMemberNotFound)

	strangerID := stranger.ID
	orphan := &storage.Membership{UserID: &strangerID, Role: auth.RoleViewer, InviteAccepted: true}
	f.orphan(t, orphan)
	_, err = f.svc.Get(ctx, admin, orphan.ID)
	assertKind(t, err, apperr.KindNotFound, MsgWorkspaceGone)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	viewer := f.addMember(t, "viewer@x.com", auth.RoleViewer)
	stranger := postgres.MustCreateUser(t, f.store, "stranger@x.com", auth.TierBase)

	members, err := f.svc.List(ctx, viewer, f.ws.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "owner@example.com", members[0].UserEmail)
	assert.Equal(t, "viewer@x.com", members[1].UserEmail)

	_, err = f.svc.List(ctx, stranger, f.ws.ID)
	assertKind(t, err, apperr.KindForbidden, rbac.MsgForbidden)
}

func TestService_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	f.svc.now = func() time.Time { return base }
	old, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "old@x.com", Role: "Viewer"})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return base.Add(6 * 24 * time.Hour) }
	fresh, err := f.svc.Invite(ctx, f.owner, AddRequest{WorkspaceID: f.ws.ID, Email: "fresh@x.com", Role: "Viewer"})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return base.Add(8 * 24 * time.Hour) }
	n, err := f.svc.PurgeExpired(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.store.GetMembership(ctx, old.Membership.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.store.GetMembership(ctx, fresh.Membership.ID)
	assert.NoError(t, err)

	// accepted memberships never expire
	_, err = f.store.FindMembership(ctx, f.ws.ID, f.owner.ID)
	assert.NoError(t, err)
}
