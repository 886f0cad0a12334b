package teams

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/notify"
	"github.com/platinummonkey/inkwell/pkg/observability"
	"github.com/platinummonkey/inkwell/pkg/quota"
	"github.com/platinummonkey/inkwell/pkg/rbac"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

// Store is the persistence the invitation lifecycle needs
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
	GetWorkspace(ctx context.Context, id string) (*storage.Workspace, error)
	storage.MembershipStore
}

// Service implements the membership and invitation lifecycle:
//
//	[none]  --Invite-->      PENDING
//	[none]  --AddDirectly--> ACTIVE
//	PENDING --Accept-->      ACTIVE
//	ACTIVE  --UpdateRole-->  ACTIVE
//	any     --Remove-->      [none]
//	PENDING --Resend-->      PENDING
type Service struct {
	store     Store
	authz     *rbac.Engine
	quotas    *quota.Engine
	notifier  notify.Notifier
	metrics   *observability.Metrics
	clientURL string
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService creates the team service. metrics may be nil.
func NewService(store Store, authz *rbac.Engine, quotas *quota.Engine, notifier notify.Notifier, metrics *observability.Metrics, clientURL string) *Service {
	return &Service{
		store:     store,
		authz:     authz,
		quotas:    quotas,
		notifier:  notifier,
		metrics:   metrics,
		clientURL: strings.TrimRight(clientURL, "/"),
		tracer:    observability.Tracer("teams"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// InviteURL is the client link for accepting membershipID
func (s *Service) InviteURL(membershipID string) string {
	return s.clientURL + "/invite/" + membershipID
}

// List returns every membership of a workspace, pending and accepted.
// Any role may list.
func (s *Service) List(ctx context.Context, caller *auth.User, workspaceID string) ([]*storage.MemberDetail, error) {
	if _, err := s.authz.Require(ctx, caller, workspaceID, rbac.AnyRole); err != nil {
		return nil, err
	}
	members, err := s.store.ListMemberships(ctx, workspaceID)
	if err != nil {
		return nil, apperr.Internal("failed to list team members", err)
	}
	if members == nil {
		members = []*storage.MemberDetail{}
	}
	return members, nil
}

// Get returns one membership. Pending invitations are visible to anyone
// holding the id so invitees can preview them. Accepted memberships are
// visible to the owner, the member, and active Admins.
func (s *Service) Get(ctx context.Context, caller *auth.User, id string) (*storage.MemberDetail, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}
	d, err := s.store.GetMemberDetail(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(MsgMemberNotFound)
		}
		return nil, apperr.Internal("failed to load team member", err)
	}

	if !d.InviteAccepted {
		return d, nil
	}
	if d.BoundTo(caller.ID) {
		return d, nil
	}

	decision, err := s.authz.Authorize(ctx, caller, d.WorkspaceID, rbac.AdminOnly)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound(MsgWorkspaceGone)
		}
		return nil, err
	}
	if !decision.Allowed {
		return nil, apperr.Forbidden(MsgCannotView)
	}
	return d, nil
}

// Invite creates a pending invitation for an email address and notifies it.
// A notification failure does not undo the invitation; it is reported in
// InviteResult.Warning.
func (s *Service) Invite(ctx context.Context, caller *auth.User, req AddRequest) (*InviteResult, error) {
	ctx, span := s.tracer.Start(ctx, "teams.Invite", trace.WithAttributes(
		attribute.String("workspace.id", req.WorkspaceID),
	))
	defer span.End()

	email, role, err := validateAdd(req)
	if err != nil {
		return nil, err
	}

	decision, err := s.authz.Require(ctx, caller, req.WorkspaceID, rbac.AdminOnly)
	if err != nil {
		return nil, err
	}
	if err := s.quotas.CheckAddMember(ctx, caller, req.WorkspaceID); err != nil {
		return nil, err
	}

	if _, err := s.store.FindPendingInvite(ctx, req.WorkspaceID, email); err == nil {
		return nil, apperr.Conflict(MsgInviteExists)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Internal("failed to check invitations", err)
	}

	var userID *string
	existing, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if _, err := s.store.FindMembership(ctx, req.WorkspaceID, existing.ID); err == nil {
			return nil, apperr.Conflict(MsgAlreadyMember)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Internal("failed to check membership", err)
		}
		id := existing.ID
		userID = &id
	case !errors.Is(err, storage.ErrNotFound):
		return nil, apperr.Internal("failed to look up user", err)
	}

	m := &storage.Membership{
		ID:          uuid.NewString(),
		WorkspaceID: req.WorkspaceID,
		UserID:      userID,
		InviteEmail: email,
		Role:        role,
		InvitedBy:   caller.ID,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateMembership(ctx, m); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Conflict(MsgAlreadyMember)
		}
		return nil, apperr.Internal("failed to create invitation", err)
	}
	s.metrics.RecordInvitationEvent("invited")

	result := &InviteResult{
		Membership: m,
		InviteURL:  s.InviteURL(m.ID),
		Message:    fmt.Sprintf("Invitation created for %s", email),
	}
	result.Warning = s.notify(ctx, caller, decision.Workspace, m)
	return result, nil
}

// AddDirectly adds an existing user as an accepted member, without notification
func (s *Service) AddDirectly(ctx context.Context, caller *auth.User, req AddRequest) (*storage.Membership, error) {
	email, role, err := validateAdd(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.authz.Require(ctx, caller, req.WorkspaceID, rbac.AdminOnly); err != nil {
		return nil, err
	}
	if err := s.quotas.CheckAddMember(ctx, caller, req.WorkspaceID); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("User with email %s not found", email))
		}
		return nil, apperr.Internal("failed to look up user", err)
	}

	if _, err := s.store.FindMembership(ctx, req.WorkspaceID, user.ID); err == nil {
		return nil, apperr.Conflict(MsgAlreadyTeamMember)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Internal("failed to check membership", err)
	}

	userID := user.ID
	m := &storage.Membership{
		ID:             uuid.NewString(),
		WorkspaceID:    req.WorkspaceID,
		UserID:         &userID,
		Role:           role,
		InviteAccepted: true,
		InvitedBy:      caller.ID,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateMembership(ctx, m); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Conflict(MsgAlreadyTeamMember)
		}
		return nil, apperr.Internal("failed to add team member", err)
	}
	s.metrics.RecordInvitationEvent("added")
	return m, nil
}

// Accept binds a pending invitation to the caller. Accepting an accepted
// membership succeeds without changes.
func (s *Service) Accept(ctx context.Context, caller *auth.User, id string) (*AcceptResult, error) {
	ctx, span := s.tracer.Start(ctx, "teams.Accept", trace.WithAttributes(
		attribute.String("membership.id", id),
	))
	defer span.End()

	if caller == nil {
		return nil, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}

	m, err := s.store.GetMembership(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(MsgInvitationNotFound)
		}
		return nil, apperr.Internal("failed to load invitation", err)
	}

	if m.InviteAccepted {
		return &AcceptResult{Membership: m, AlreadyAccepted: true}, nil
	}

	switch subject := m.Subject().(type) {
	case storage.PendingSubject:
		if err := matchInviteEmail(subject.Email, caller); err != nil {
			return nil, err
		}
	case storage.BoundSubject:
		if err := matchInviteEmail(m.InviteEmail, caller); err != nil {
			return nil, err
		}
		if !rbac.MatchesCaller(subject.UserID, caller) {
			return nil, apperr.Forbidden(MsgNotInvitee)
		}
	}

	if err := s.store.AcceptMembership(ctx, m.ID, caller.ID, s.now()); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			return nil, apperr.Conflict(MsgAlreadyMember)
		case errors.Is(err, storage.ErrNotFound):
			return nil, apperr.NotFound(MsgInvitationNotFound)
		}
		return nil, apperr.Internal("failed to accept invitation", err)
	}

	accepted, err := s.store.GetMembership(ctx, m.ID)
	if err != nil {
		return nil, apperr.Internal("failed to reload invitation", err)
	}
	s.metrics.RecordInvitationEvent("accepted")
	return &AcceptResult{Membership: accepted}, nil
}

// UpdateRole changes the role of a membership. Admin only.
func (s *Service) UpdateRole(ctx context.Context, caller *auth.User, id, roleName string) (*storage.Membership, error) {
	if strings.TrimSpace(roleName) == "" {
		return nil, apperr.Validation(MsgMissingRole)
	}
	role, ok := auth.ParseRole(roleName)
	if !ok {
		return nil, apperr.Validation(MsgInvalidRole)
	}

	m, _, err := s.authz.RequireMembership(ctx, caller, id, rbac.AdminOnly)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateMembershipRole(ctx, m.ID, role, s.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(MsgMemberNotFound)
		}
		return nil, apperr.Internal("failed to update team member", err)
	}

	updated, err := s.store.GetMembership(ctx, m.ID)
	if err != nil {
		return nil, apperr.Internal("failed to reload team member", err)
	}
	s.metrics.RecordInvitationEvent("role_changed")
	return updated, nil
}

// Remove deletes a membership. Only the owner or an active Admin may remove;
// an unknown id is a successful no-op, and a membership whose workspace is
// gone is deleted without a role check.
func (s *Service) Remove(ctx context.Context, caller *auth.User, id string) (bool, error) {
	if caller == nil {
		return false, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}

	m, err := s.store.GetMembership(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, apperr.Internal("failed to load team member", err)
	}

	decision, err := s.authz.Authorize(ctx, caller, m.WorkspaceID, rbac.AdminOnly)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		observability.FromContext(ctx).
			WithField("membership_id", m.ID).
			Warn("removing membership of a missing workspace")
	case err != nil:
		return false, err
	case !decision.Allowed:
		return false, apperr.Forbidden(MsgCannotRemove)
	}

	removed, err := s.store.DeleteMembership(ctx, m.ID)
	if err != nil {
		return false, apperr.Internal("failed to remove team member", err)
	}
	if removed {
		s.metrics.RecordInvitationEvent("removed")
	}
	return removed, nil
}

// Resend re-sends a pending invitation and refreshes its timestamp
func (s *Service) Resend(ctx context.Context, caller *auth.User, id string) (*InviteResult, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}

	m, err := s.store.GetMembership(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(MsgInvitationNotFound)
		}
		return nil, apperr.Internal("failed to load invitation", err)
	}

	decision, err := s.authz.Require(ctx, caller, m.WorkspaceID, rbac.AdminOnly)
	if err != nil {
		return nil, err
	}
	if m.InviteAccepted {
		return nil, apperr.Conflict(MsgResendAccepted)
	}
	if m.InviteEmail == "" {
		return nil, apperr.Validation(MsgResendNoEmail)
	}

	if err := s.store.TouchMembership(ctx, m.ID, s.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(MsgInvitationNotFound)
		}
		return nil, apperr.Internal("failed to update invitation", err)
	}
	s.metrics.RecordInvitationEvent("resent")

	result := &InviteResult{
		InviteURL: s.InviteURL(m.ID),
		Message:   fmt.Sprintf("Invitation resent to %s", m.InviteEmail),
	}
	result.Warning = s.notify(ctx, caller, decision.Workspace, m)
	return result, nil
}

// PurgeExpired deletes pending invitations not touched within ttl
func (s *Service) PurgeExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := s.store.DeleteStalePendingInvites(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.RecordInvitationEvent("expired")
	}
	return n, nil
}

// notify delivers the invitation and returns a warning on failure
func (s *Service) notify(ctx context.Context, caller *auth.User, ws *storage.Workspace, m *storage.Membership) string {
	if s.notifier == nil {
		return ""
	}
	err := s.notifier.NotifyInvitation(ctx, &notify.Invitation{
		Email:         m.InviteEmail,
		InviteID:      m.ID,
		InviteURL:     s.InviteURL(m.ID),
		WorkspaceName: ws.Name,
		Role:          string(m.Role),
		InviterName:   caller.Name,
	})
	if err == nil {
		return ""
	}

	s.metrics.RecordNotificationFailure(s.notifier.Name())
	observability.FromContext(ctx).
		WithError(err).
		WithField("membership_id", m.ID).
		Warn("invitation notification failed")
	return MsgNotifyFailed
}

// matchInviteEmail requires the caller to own inviteEmail through an address
// the identity provider has verified. An empty inviteEmail matches anyone.
func matchInviteEmail(inviteEmail string, caller *auth.User) error {
	if inviteEmail == "" {
		return nil
	}
	if auth.IsPlaceholderEmail(caller.Email) || auth.NormalizeEmail(inviteEmail) != auth.NormalizeEmail(caller.Email) {
		return apperr.Forbidden(MsgDifferentEmail)
	}
	if !caller.EmailVerified {
		return apperr.Forbidden(MsgEmailUnverified)
	}
	return nil
}

func validateAdd(req AddRequest) (string, auth.Role, error) {
	if strings.TrimSpace(req.WorkspaceID) == "" || strings.TrimSpace(req.Email) == "" {
		return "", "", apperr.Validation(MsgMissingFields)
	}
	role, err := parseRequiredRole(req.Role)
	if err != nil {
		return "", "", err
	}
	email := auth.NormalizeEmail(req.Email)
	if auth.IsPlaceholderEmail(email) {
		return "", "", apperr.Validation(MsgInvalidEmail)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", "", apperr.Validation(MsgInvalidEmail)
	}
	return email, role, nil
}
