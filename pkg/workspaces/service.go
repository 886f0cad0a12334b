package workspaces

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/httputil"
	"github.com/platinummonkey/inkwell/pkg/quota"
	"github.com/platinummonkey/inkwell/pkg/rbac"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

// Limits and messages for workspace fields
const (
	MaxNameLength        = 50
	MaxDescriptionLength = 500

	MsgNameRequired = "Please add a workspace name"
	MsgNameTooLong  = "Name cannot be more than 50 characters"
	MsgDescTooLong  = "Description cannot be more than 500 characters"
	MsgCannotDelete = "Not authorized to delete this workspace"
)

// Store is the persistence the workspace service needs
type Store interface {
	CreateWorkspace(ctx context.Context, ws *storage.Workspace, owner *storage.Membership) error
	GetWorkspace(ctx context.Context, id string) (*storage.Workspace, error)
	UpdateWorkspace(ctx context.Context, ws *storage.Workspace) error
	DeleteWorkspace(ctx context.Context, id string) error
	ListOwnedWorkspaces(ctx context.Context, ownerID string) ([]*storage.Workspace, error)
	ListMemberWorkspaces(ctx context.Context, userID string) ([]*storage.WorkspaceSummary, error)
}

// CreateRequest is the body of POST /workspaces
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateRequest is the body of PUT /workspaces/{id}. Nil fields are unchanged.
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Service implements workspace CRUD
type Service struct {
	store  Store
	authz  *rbac.Engine
	quotas *quota.Engine
	now    func() time.Time
}

// NewService creates a workspace service
func NewService(store Store, authz *rbac.Engine, quotas *quota.Engine) *Service {
	return &Service{
		store:  store,
		authz:  authz,
		quotas: quotas,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create makes caller the owner of a new workspace, together with the
// owner's accepted Admin membership
func (s *Service) Create(ctx context.Context, caller *auth.User, req CreateRequest) (*storage.Workspace, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}
	name := strings.TrimSpace(req.Name)
	description := strings.TrimSpace(req.Description)
	if err := validate(name, description); err != nil {
		return nil, err
	}

	if err := s.quotas.CheckCreateWorkspace(ctx, caller); err != nil {
		return nil, err
	}

	now := s.now()
	ws := &storage.Workspace{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		OwnerID:     caller.ID,
		CreatedAt:   now,
	}
	ownerID := caller.ID
	owner := &storage.Membership{
		ID:             uuid.NewString(),
		UserID:         &ownerID,
		Role:           auth.RoleAdmin,
		InviteAccepted: true,
		InvitedBy:      caller.ID,
		CreatedAt:      now,
	}
	if err := s.store.CreateWorkspace(ctx, ws, owner); err != nil {
		return nil, apperr.Internal("failed to create workspace", err)
	}
	return ws, nil
}

// List returns the workspaces caller owns, annotated Owner, followed by the
// workspaces where caller holds an accepted membership. A workspace appears once.
func (s *Service) List(ctx context.Context, caller *auth.User) ([]*storage.WorkspaceSummary, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}

	var owned []*storage.Workspace
	var member []*storage.WorkspaceSummary

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		owned, err = s.store.ListOwnedWorkspaces(gctx, caller.ID)
		return err
	})
	g.Go(func() error {
		var err error
		member, err = s.store.ListMemberWorkspaces(gctx, caller.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal("failed to list workspaces", err)
	}

	result := make([]*storage.WorkspaceSummary, 0, len(owned)+len(member))
	seen := make(map[string]bool, len(owned))
	for _, ws := range owned {
		seen[ws.ID] = true
		result = append(result, &storage.WorkspaceSummary{Workspace: *ws, Role: auth.RoleOwner})
	}
	for _, summary := range member {
		if seen[summary.ID] {
			continue
		}
		seen[summary.ID] = true
		result = append(result, summary)
	}
	return result, nil
}

// Get returns a workspace to its owner or any active member
func (s *Service) Get(ctx context.Context, caller *auth.User, id string) (*storage.WorkspaceSummary, error) {
	d, err := s.authz.Require(ctx, caller, id, rbac.AnyRole)
	if err != nil {
		return nil, err
	}
	return &storage.WorkspaceSummary{Workspace: *d.Workspace, Role: d.EffectiveRole}, nil
}

// Update changes name and description. Admin only.
func (s *Service) Update(ctx context.Context, caller *auth.User, id string, req UpdateRequest) (*storage.Workspace, error) {
	d, err := s.authz.Require(ctx, caller, id, rbac.AdminOnly)
	if err != nil {
		return nil, err
	}

	ws := *d.Workspace
	if req.Name != nil {
		ws.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		ws.Description = strings.TrimSpace(*req.Description)
	}
	if err := validate(ws.Name, ws.Description); err != nil {
		return nil, err
	}

	ws.UpdatedAt = s.now()
	if err := s.store.UpdateWorkspace(ctx, &ws); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(rbac.MsgWorkspaceNotFound)
		}
		return nil, apperr.Internal("failed to update workspace", err)
	}
	return &ws, nil
}

// Delete removes a workspace with its memberships and content. Owner only.
func (s *Service) Delete(ctx context.Context, caller *auth.User, id string) error {
	if caller == nil {
		return apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}

	ws, err := s.store.GetWorkspace(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound(rbac.MsgWorkspaceNotFound)
		}
		return apperr.Internal("failed to load workspace", err)
	}
	if err := rbac.RequireOwner(ws.OwnerID, caller, MsgCannotDelete); err != nil {
		return err
	}

	if err := s.store.DeleteWorkspace(ctx, ws.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound(rbac.MsgWorkspaceNotFound)
		}
		return apperr.Internal("failed to delete workspace", err)
	}
	return nil
}

func validate(name, description string) error {
	return httputil.Validate(
		httputil.Required(name, MsgNameRequired),
		httputil.MaxLength(name, MaxNameLength, MsgNameTooLong),
		httputil.MaxLength(description, MaxDescriptionLength, MsgDescTooLong),
	)
}
