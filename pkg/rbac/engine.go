package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/observability"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

// Messages returned to clients
const (
	MsgForbidden         = "Not authorized to perform this action in this workspace"
	MsgWorkspaceNotFound = "Workspace not found"
	MsgWorkspaceRequired = "Workspace ID is required"
	MsgMemberNotFound    = "Team member not found"
	MsgNotAuthenticated  = "Not authorized to access this route"
)

// Lookup is the read access the engine needs
type Lookup interface {
	GetWorkspace(ctx context.Context, id string) (*storage.Workspace, error)
	GetMembership(ctx context.Context, id string) (*storage.Membership, error)
	FindMembership(ctx context.Context, workspaceID, userID string) (*storage.Membership, error)
}

// Engine decides whether a caller may act on a workspace. It is read-only
// and keeps no state between calls.
type Engine struct {
	lookup  Lookup
	metrics *observability.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// NewEngine creates an authorization engine. metrics may be nil.
func NewEngine(lookup Lookup, metrics *observability.Metrics) *Engine {
	return &Engine{
		lookup:  lookup,
		metrics: metrics,
		tracer:  observability.Tracer("rbac"),
		now:     time.Now,
	}
}

// Authorize decides whether caller may act on workspaceID with one of the
// required roles. A deny is reported through the Decision, not an error;
// errors mean the decision could not be made (missing workspace, store failure).
func (e *Engine) Authorize(ctx context.Context, caller *auth.User, workspaceID string, required RoleSet) (*Decision, error) {
	ctx, span := e.tracer.Start(ctx, "rbac.Authorize", trace.WithAttributes(
		attribute.String("workspace.id", workspaceID),
		attribute.String("rbac.required", required.String()),
	))
	defer span.End()

	if len(required) == 0 {
		err := apperr.Internal("authorization misconfigured", errors.New("rbac: required role set is empty"))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if caller == nil {
		return nil, apperr.Unauthenticated(MsgNotAuthenticated)
	}
	if workspaceID == "" {
		return nil, apperr.Validation(MsgWorkspaceRequired)
	}

	ws, err := e.lookup.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(MsgWorkspaceNotFound)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, apperr.Internal("failed to load workspace", err)
	}

	decision, err := e.decide(ctx, caller, ws, required)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("rbac.allowed", decision.Allowed),
		attribute.String("rbac.reason", string(decision.Reason)),
	)
	e.metrics.RecordAuthzDecision(decision.Allowed, string(decision.Reason))
	return decision, nil
}

func (e *Engine) decide(ctx context.Context, caller *auth.User, ws *storage.Workspace, required RoleSet) (*Decision, error) {
	d := &Decision{Workspace: ws, CheckedAt: e.now()}

	if MatchesCaller(ws.OwnerID, caller) {
		d.Allowed = true
		d.Reason = ReasonOwner
		d.EffectiveRole = auth.RoleOwner
		return d, nil
	}

	m, err := e.lookup.FindMembership(ctx, ws.ID, caller.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			d.Reason = ReasonNoMembership
			return d, nil
		}
		return nil, apperr.Internal("failed to load membership", err)
	}
	d.Membership = m

	if !m.InviteAccepted {
		d.Reason = ReasonPendingInvite
		return d, nil
	}

	d.EffectiveRole = m.Role
	if !required.Contains(m.Role) {
		d.Reason = ReasonRoleNotPermitted
		return d, nil
	}

	d.Allowed = true
	d.Reason = ReasonRoleMatched
	return d, nil
}

// Require is Authorize with a deny converted into a Forbidden error
func (e *Engine) Require(ctx context.Context, caller *auth.User, workspaceID string, required RoleSet) (*Decision, error) {
	d, err := e.Authorize(ctx, caller, workspaceID, required)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return d, apperr.Forbidden(MsgForbidden)
	}
	return d, nil
}

// RequireMembership resolves the workspace through a membership id, then
// runs Require. It returns the membership so callers do not load it twice.
func (e *Engine) RequireMembership(ctx context.Context, caller *auth.User, membershipID string, required RoleSet) (*storage.Membership, *Decision, error) {
	m, err := e.lookup.GetMembership(ctx, membershipID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperr.NotFound(MsgMemberNotFound)
		}
		return nil, nil, apperr.Internal("failed to load membership", err)
	}

	d, err := e.Require(ctx, caller, m.WorkspaceID, required)
	if err != nil {
		return m, d, err
	}
	return m, d, nil
}

// EffectiveRole returns RoleOwner for the owner, the role of an accepted
// membership, or the empty role when the caller has no access
func (e *Engine) EffectiveRole(ctx context.Context, caller *auth.User, workspaceID string) (auth.Role, error) {
	d, err := e.Authorize(ctx, caller, workspaceID, AnyRole)
	if err != nil {
		return "", err
	}
	if !d.Allowed {
		return "", nil
	}
	return d.EffectiveRole, nil
}

// MatchesCaller is the identity-matching primitive shared by every
// ownership check: workspaces, memberships and API keys.
func MatchesCaller(ownerID string, caller *auth.User) bool {
	return caller != nil && ownerID != "" && ownerID == caller.ID
}

// RequireOwner returns Forbidden with message unless caller owns the resource
func RequireOwner(ownerID string, caller *auth.User, message string) error {
	if !MatchesCaller(ownerID, caller) {
		return apperr.Forbidden(message)
	}
	return nil
}

// String renders a decision for logs
func (d *Decision) String() string {
	return fmt.Sprintf("allowed=%t reason=%s role=%s", d.Allowed, d.Reason, d.EffectiveRole)
}
