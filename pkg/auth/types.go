package auth

import (
	"strings"
	"time"
)

// Tier is a user's subscription level
type Tier string

const (
	TierBase Tier = "base"
	TierPro  Tier = "pro"
)

// Valid reports whether t is a known subscription tier
func (t Tier) Valid() bool {
	return t == TierBase || t == TierPro
}

// Role is a workspace-scoped role carried by a membership
type Role string

const (
	RoleAdmin  Role = "Admin"  // Manage workspace settings and members
	RoleEditor Role = "Editor" // Create and edit content
	RoleViewer Role = "Viewer" // Read-only access

	// RoleOwner is never stored on a membership. It annotates workspace
	// listings for the workspace owner.
	RoleOwner Role = "Owner"
)

// Valid reports whether r can be stored on a membership
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// ParseRole converts s into a membership role. An empty string yields RoleViewer.
func ParseRole(s string) (Role, bool) {
	if s == "" {
		return RoleViewer, true
	}
	r := Role(s)
	return r, r.Valid()
}

// User is the resolved caller identity
type User struct {
	ID            string    `json:"id"`
	ExternalID    string    `json:"external_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Tier          Tier      `json:"subscription_tier"`
	IsSystemAdmin bool      `json:"is_system_admin"`
	CreatedAt     time.Time `json:"created_at"`
}

// EffectiveTier returns the user's tier, treating unknown values as base
func (u *User) EffectiveTier() Tier {
	if u == nil || !u.Tier.Valid() {
		return TierBase
	}
	return u.Tier
}

// PlaceholderEmail is the address some providers hand out when a user has none.
// It never identifies a real mailbox.
const PlaceholderEmail = "user@example.com"

// NormalizeEmail trims and lower-cases an email address for storage and comparison
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsPlaceholderEmail reports whether email is empty or the shared placeholder
func IsPlaceholderEmail(email string) bool {
	e := NormalizeEmail(email)
	return e == "" || e == PlaceholderEmail
}

// AuthContext holds authenticated caller information
type AuthContext struct {
	User *User
	// TokenHash identifies the bearer token the caller presented
	TokenHash string
}

// UserID returns the caller's user id or the empty string
func (ac *AuthContext) UserID() string {
	if ac == nil || ac.User == nil {
		return ""
	}
	return ac.User.ID
}
