package teams

import (
	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

// Messages returned to clients
const (
	MsgMissingFields        = "Please provide workspace, email and role"
	MsgInvalidRole          = "Please provide a valid role (Admin, Editor or Viewer)"
	MsgMissingRole          = "Please provide a role"
	MsgInvalidEmail         = "Please provide a valid email"
	MsgInviteExists         = "An invitation has already been sent to this email"
	MsgAlreadyMember        = "This user is already a member of this workspace"
	MsgAlreadyTeamMember    = "User is already a team member"
	MsgInvitationNotFound   = "Invitation not found"
	MsgMemberNotFound       = "Team member not found"
	MsgAlreadyAccepted      = "Invitation already accepted"
	MsgAcceptedSuccessfully = "Invitation accepted successfully"
	MsgDifferentEmail       = "This invitation was sent to a different email address"
	MsgNotInvitee           = "Not authorized to accept this invitation"
	MsgEmailUnverified      = "Verify your email address before accepting this invitation"
	MsgCannotRemove         = "Not authorized to remove team members"
	MsgCannotView           = "Not authorized to access this team member's details"
	MsgWorkspaceGone        = "The workspace associated with this team member no longer exists"
	MsgResendAccepted       = "This invitation has already been accepted"
	MsgResendNoEmail        = "No email address associated with this invitation"
	MsgNotifyFailed         = "Invitation saved but the notification could not be delivered"
)

// AddRequest is the input of Invite and AddDirectly
type AddRequest struct {
	WorkspaceID string `json:"workspace"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

// InviteResult is returned by Invite and Resend
type InviteResult struct {
	Membership *storage.Membership `json:"membership,omitempty"`
	InviteURL  string              `json:"invite_url"`
	Message    string              `json:"-"`
	// Warning is set when the notification could not be delivered
	Warning string `json:"-"`
}

// AcceptResult is returned by Accept
type AcceptResult struct {
	Membership      *storage.Membership
	AlreadyAccepted bool
}

// Message is the client-facing summary of the accept outcome
func (r *AcceptResult) Message() string {
	if r.AlreadyAccepted {
		return MsgAlreadyAccepted
	}
	return MsgAcceptedSuccessfully
}

func parseRequiredRole(s string) (auth.Role, error) {
	if s == "" {
		return "", apperr.Validation(MsgMissingFields)
	}
	role, ok := auth.ParseRole(s)
	if !ok {
		return "", apperr.Validation(MsgInvalidRole)
	}
	return role, nil
}
