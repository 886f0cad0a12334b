package storage

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/inkwell/pkg/auth"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write
	ErrDuplicate = errors.New("duplicate record")
)

// UserStore persists caller identities
type UserStore interface {
	GetUser(ctx context.Context, id string) (*auth.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*auth.User, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
	CreateUser(ctx context.Context, user *auth.User) error
	UpdateUserTier(ctx context.Context, id string, tier auth.Tier) error
	SetSystemAdmin(ctx context.Context, id string, isAdmin bool) error
	ListUsers(ctx context.Context) ([]*auth.User, error)
}

// WorkspaceStore persists workspaces
type WorkspaceStore interface {
	// CreateWorkspace inserts the workspace and the owner's membership atomically
	CreateWorkspace(ctx context.Context, ws *Workspace, owner *Membership) error
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
	UpdateWorkspace(ctx context.Context, ws *Workspace) error
	// DeleteWorkspace removes the workspace with its memberships and contents
	DeleteWorkspace(ctx context.Context, id string) error
	ListOwnedWorkspaces(ctx context.Context, ownerID string) ([]*Workspace, error)
	// ListMemberWorkspaces returns workspaces where userID has an accepted membership
	ListMemberWorkspaces(ctx context.Context, userID string) ([]*WorkspaceSummary, error)
	CountOwnedWorkspaces(ctx context.Context, ownerID string) (int64, error)
}

// MembershipStore persists memberships and pending invitations
type MembershipStore interface {
	CreateMembership(ctx context.Context, m *Membership) error
	GetMembership(ctx context.Context, id string) (*Membership, error)
	FindMembership(ctx context.Context, workspaceID, userID string) (*Membership, error)
	FindPendingInvite(ctx context.Context, workspaceID, email string) (*Membership, error)
	// GetMemberDetail returns a membership with display names; WorkspaceName is empty if the workspace is gone
	GetMemberDetail(ctx context.Context, id string) (*MemberDetail, error)
	ListMemberships(ctx context.Context, workspaceID string) ([]*MemberDetail, error)
	// CountMemberships counts pending and accepted rows, skipping rows bound to excludeUserID
	CountMemberships(ctx context.Context, workspaceID, excludeUserID string) (int64, error)
	UpdateMembershipRole(ctx context.Context, id string, role auth.Role, at time.Time) error
	AcceptMembership(ctx context.Context, id, userID string, at time.Time) error
	TouchMembership(ctx context.Context, id string, at time.Time) error
	// DeleteMembership reports whether a row was removed
	DeleteMembership(ctx context.Context, id string) (bool, error)
	DeleteStalePendingInvites(ctx context.Context, before time.Time) (int64, error)
}

// ContentStore persists workspace content
type ContentStore interface {
	CreateContent(ctx context.Context, c *Content) error
	GetContent(ctx context.Context, id string) (*Content, error)
	ListContent(ctx context.Context, workspaceID string) ([]*Content, error)
	UpdateContent(ctx context.Context, c *Content) error
	DeleteContent(ctx context.Context, id string) error
}

// APIKeyStore persists provider API keys
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, k *APIKey) error
	GetAPIKey(ctx context.Context, id string) (*APIKey, error)
	ListAPIKeys(ctx context.Context, userID string) ([]*APIKey, error)
	// GetActiveAPIKey returns the most recently created active key for service
	GetActiveAPIKey(ctx context.Context, userID, service string) (*APIKey, error)
	SetAPIKeyActive(ctx context.Context, id string, active bool, at time.Time) error
	TouchAPIKey(ctx context.Context, id string, at time.Time) error
	DeleteAPIKey(ctx context.Context, id string) error
}

// Store composes every persistence capability
type Store interface {
	UserStore
	WorkspaceStore
	MembershipStore
	ContentStore
	APIKeyStore

	HealthCheck(ctx context.Context) error
}
