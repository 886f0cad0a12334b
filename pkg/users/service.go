// Package users exposes the caller's own record, subscription changes, and
// the system-administrator user operations.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/rbac"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

const (
	MsgInvalidPlan  = "Invalid subscription plan"
	MsgUserNotFound = "User not found"
)

// Store is the persistence the user service needs
type Store interface {
	GetUser(ctx context.Context, id string) (*auth.User, error)
	UpdateUserTier(ctx context.Context, id string, tier auth.Tier) error
	SetSystemAdmin(ctx context.Context, id string, isAdmin bool) error
	ListUsers(ctx context.Context) ([]*auth.User, error)
}

// SubscriptionRequest is the body of PUT /users/subscription
type SubscriptionRequest struct {
	Tier auth.Tier `json:"subscription_tier"`
}

// Service implements user operations
type Service struct {
	store Store
}

// NewService creates a user service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Me returns the caller's current record
func (s *Service) Me(ctx context.Context, caller *auth.User) (*auth.User, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}
	return s.load(ctx, caller.ID)
}

// UpdateSubscription moves the caller to another tier. Existing workspaces
// and members above the new tier's limits are kept.
func (s *Service) UpdateSubscription(ctx context.Context, caller *auth.User, tier auth.Tier) (*auth.User, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}
	if !tier.Valid() {
		return nil, apperr.Validation(MsgInvalidPlan)
	}
	if err := s.store.UpdateUserTier(ctx, caller.ID, tier); err != nil {
		return nil, s.mapErr("update subscription", err)
	}
	return s.load(ctx, caller.ID)
}

// List returns every user. System administrators only.
func (s *Service) List(ctx context.Context, caller *auth.User) ([]*auth.User, error) {
	if err := requireSystemAdmin(caller); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list users", err)
	}
	if users == nil {
		users = []*auth.User{}
	}
	return users, nil
}

// MakeAdmin grants the system-administrator flag. System administrators only.
func (s *Service) MakeAdmin(ctx context.Context, caller *auth.User, id string) (*auth.User, error) {
	if err := requireSystemAdmin(caller); err != nil {
		return nil, err
	}
	if err := s.store.SetSystemAdmin(ctx, id, true); err != nil {
		return nil, s.mapErr("grant admin", err)
	}
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (*auth.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, s.mapErr("load user", err)
	}
	return u, nil
}

func (s *Service) mapErr(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(MsgUserNotFound)
	}
	return apperr.Internal(fmt.Sprintf("failed to %s", op), err)
}

func requireSystemAdmin(caller *auth.User) error {
	if caller == nil {
		return apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}
	if !caller.IsSystemAdmin {
		return apperr.Forbidden(rbac.MsgNotAuthenticated)
	}
	return nil
}
