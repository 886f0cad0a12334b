package storage

import (
	"time"

	"github.com/platinummonkey/inkwell/pkg/auth"
)

// Workspace is a named collaboration container with exactly one owner
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WorkspaceSummary is a workspace annotated with the caller's effective role
type WorkspaceSummary struct {
	Workspace
	Role auth.Role `json:"role"`
}

// MembershipState is the lifecycle state of a membership
type MembershipState string

const (
	StatePending MembershipState = "pending"
	StateActive  MembershipState = "active"
)

// Membership relates a workspace to a user, or to an email address for
// invitations sent before the user is known.
type Membership struct {
	ID             string    `json:"id"`
	WorkspaceID    string    `json:"workspace"`
	UserID         *string   `json:"user,omitempty"`
	InviteEmail    string    `json:"invite_email,omitempty"`
	Role           auth.Role `json:"role"`
	InviteAccepted bool      `json:"invite_accepted"`
	InvitedBy      string    `json:"invited_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// State reports whether the membership is a pending invitation or an active grant
func (m *Membership) State() MembershipState {
	if m.InviteAccepted {
		return StateActive
	}
	return StatePending
}

// IsActive reports whether the membership grants access
func (m *Membership) IsActive() bool {
	return m.InviteAccepted && m.UserID != nil
}

// BoundTo reports whether the membership is bound to userID
func (m *Membership) BoundTo(userID string) bool {
	return m.UserID != nil && *m.UserID == userID
}

// Subject identifies who a membership is for
type Subject interface {
	isSubject()
}

// BoundSubject is a membership attached to a user record
type BoundSubject struct {
	UserID string
}

// PendingSubject is an email-only invitation with no user record attached
type PendingSubject struct {
	Email string
}

func (BoundSubject) isSubject()   {}
func (PendingSubject) isSubject() {}

// Subject returns the bound user if there is one, otherwise the invited email
func (m *Membership) Subject() Subject {
	if m.UserID != nil {
		return BoundSubject{UserID: *m.UserID}
	}
	return PendingSubject{Email: m.InviteEmail}
}

// MemberDetail is a membership joined with display fields for listings
type MemberDetail struct {
	Membership
	UserName      string `json:"user_name,omitempty"`
	UserEmail     string `json:"user_email,omitempty"`
	InviterName   string `json:"inviter_name,omitempty"`
	WorkspaceName string `json:"workspace_name,omitempty"`
}

// ContentType classifies generated content
type ContentType string

const (
	ContentText    ContentType = "text"
	ContentArticle ContentType = "article"
	ContentSocial  ContentType = "social"
	ContentOther   ContentType = "other"
)

// Valid reports whether t is a known content type
func (t ContentType) Valid() bool {
	switch t {
	case ContentText, ContentArticle, ContentSocial, ContentOther:
		return true
	}
	return false
}

// Content is a piece of text scoped to a workspace
type Content struct {
	ID           string      `json:"id"`
	WorkspaceID  string      `json:"workspace"`
	Title        string      `json:"title"`
	Body         string      `json:"body"`
	Prompt       string      `json:"prompt,omitempty"`
	ContentType  ContentType `json:"content_type"`
	CreatedBy    string      `json:"created_by"`
	LastEditedBy string      `json:"last_edited_by,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// APIKey is a user-owned credential for a generation provider
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user"`
	Name       string     `json:"name"`
	Key        string     `json:"key"`
	Service    string     `json:"service"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
