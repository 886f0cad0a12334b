package rbac

import (
	"strings"
	"time"

	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

// RoleSet is the exact set of membership roles an operation accepts.
// Roles are flat: a set containing only Editor does not admit Admins.
type RoleSet []auth.Role

// Common role sets
var (
	AdminOnly = RoleSet{auth.RoleAdmin}
	Writers   = RoleSet{auth.RoleAdmin, auth.RoleEditor}
	AnyRole   = RoleSet{auth.RoleAdmin, auth.RoleEditor, auth.RoleViewer}
)

// Contains reports whether role is a member of the set
func (rs RoleSet) Contains(role auth.Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

func (rs RoleSet) String() string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = string(r)
	}
	return strings.Join(names, "|")
}

// Reason explains an authorization decision
type Reason string

const (
	ReasonOwner            Reason = "owner"
	ReasonRoleMatched      Reason = "role_matched"
	ReasonNoMembership     Reason = "no_membership"
	ReasonPendingInvite    Reason = "pending_invite"
	ReasonRoleNotPermitted Reason = "role_not_permitted"
)

// Decision is the outcome of an authorization check
type Decision struct {
	Allowed bool
	Reason  Reason
	// EffectiveRole is RoleOwner for the owner, the membership role for
	// active members, and empty otherwise.
	EffectiveRole auth.Role
	Workspace     *storage.Workspace
	// Membership is the caller's membership, if any
	Membership *storage.Membership
	CheckedAt  time.Time
}
