package quota

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/observability"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

// Counter is the read access the engine needs
type Counter interface {
	CountOwnedWorkspaces(ctx context.Context, ownerID string) (int64, error)
	CountMemberships(ctx context.Context, workspaceID, excludeUserID string) (int64, error)
	GetWorkspace(ctx context.Context, id string) (*storage.Workspace, error)
}

// Engine enforces subscription limits. Counts are read at call time and
// there is no reservation, so concurrent creators may overshoot by the
// number of racers.
type Engine struct {
	counter Counter
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewEngine creates a quota engine. metrics may be nil.
func NewEngine(counter Counter, metrics *observability.Metrics) *Engine {
	return &Engine{
		counter: counter,
		metrics: metrics,
		tracer:  observability.Tracer("quota"),
	}
}

// Check evaluates req for caller. Hard limits return a QuotaExceeded error;
// generation is never denied, only clamped.
func (e *Engine) Check(ctx context.Context, caller *auth.User, req Request) (*Decision, error) {
	switch req.Action {
	case ActionCreateWorkspace:
		if err := e.CheckCreateWorkspace(ctx, caller); err != nil {
			return nil, err
		}
		return &Decision{Allowed: true}, nil
	case ActionAddMember:
		if err := e.CheckAddMember(ctx, caller, req.WorkspaceID); err != nil {
			return nil, err
		}
		return &Decision{Allowed: true}, nil
	case ActionGenerateContent:
		return &Decision{Allowed: true, Tokens: ClampTokens(caller.EffectiveTier(), req.RequestedTokens)}, nil
	default:
		return nil, apperr.Internal("quota check failed", fmt.Errorf("quota: unknown action %q", req.Action))
	}
}

// CheckCreateWorkspace denies when the caller already owns the tier's
// maximum number of workspaces
func (e *Engine) CheckCreateWorkspace(ctx context.Context, caller *auth.User) error {
	ctx, span := e.tracer.Start(ctx, "quota.CheckCreateWorkspace")
	defer span.End()

	if caller == nil {
		return apperr.Unauthenticated("Not authorized to access this route")
	}
	if caller.IsSystemAdmin {
		return nil
	}

	tier := caller.EffectiveTier()
	limit := LimitsFor(tier).MaxWorkspaces

	count, err := e.counter.CountOwnedWorkspaces(ctx, caller.ID)
	if err != nil {
		return apperr.Internal("failed to count workspaces", err)
	}
	span.SetAttributes(attribute.Int64("quota.current", count), attribute.Int64("quota.limit", limit))

	if count >= limit {
		return e.deny(&QuotaExceededError{Resource: "workspaces", Tier: tier, Current: count, Limit: limit})
	}
	return nil
}

// CheckAddMember denies when the workspace already holds the tier's maximum
// number of memberships. Pending and accepted rows both count; the owner's
// own membership does not.
func (e *Engine) CheckAddMember(ctx context.Context, caller *auth.User, workspaceID string) error {
	ctx, span := e.tracer.Start(ctx, "quota.CheckAddMember", trace.WithAttributes(
		attribute.String("workspace.id", workspaceID),
	))
	defer span.End()

	if caller == nil {
		return apperr.Unauthenticated("Not authorized to access this route")
	}
	if workspaceID == "" {
		return apperr.Validation("Workspace ID is required")
	}
	if caller.IsSystemAdmin {
		return nil
	}

	ws, err := e.counter.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("Workspace not found")
		}
		return apperr.Internal("failed to load workspace", err)
	}

	tier := caller.EffectiveTier()
	limit := LimitsFor(tier).MaxMembersPerWorkspace

	count, err := e.counter.CountMemberships(ctx, ws.ID, ws.OwnerID)
	if err != nil {
		return apperr.Internal("failed to count members", err)
	}
	span.SetAttributes(attribute.Int64("quota.current", count), attribute.Int64("quota.limit", limit))

	if count >= limit {
		return e.deny(&QuotaExceededError{Resource: "members", Tier: tier, Current: count, Limit: limit})
	}
	return nil
}

func (e *Engine) deny(qe *QuotaExceededError) error {
	e.metrics.RecordQuotaDenial(qe.Resource, string(qe.Tier))
	return apperr.QuotaExceeded(qe.Error(), qe)
}

// ClampTokens returns the generation budget for tier. A non-positive request
// means DefaultMaxTokens. Tiers without a token ceiling are not clamped.
func ClampTokens(tier auth.Tier, requested int) int {
	if requested <= 0 {
		requested = DefaultMaxTokens
	}
	max := LimitsFor(tier).MaxTokens
	if max > 0 && requested > max {
		return max
	}
	return requested
}
