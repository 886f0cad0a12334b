package quota

import (
	"fmt"

	"github.com/platinummonkey/inkwell/pkg/auth"
)

// Action is a resource-creating operation subject to quota
type Action string

const (
	ActionCreateWorkspace Action = "create_workspace"
	ActionAddMember       Action = "add_member"
	ActionGenerateContent Action = "generate_content"
)

// Limits are the per-tier ceilings
type Limits struct {
	MaxWorkspaces          int64
	MaxMembersPerWorkspace int64
	// MaxTokens is the generation budget ceiling; zero means unclamped
	MaxTokens int
}

// DefaultMaxTokens is used when a generation request does not ask for a budget
const DefaultMaxTokens = 500

var tierLimits = map[auth.Tier]Limits{
	auth.TierBase: {MaxWorkspaces: 3, MaxMembersPerWorkspace: 2, MaxTokens: 500},
	auth.TierPro:  {MaxWorkspaces: 10, MaxMembersPerWorkspace: 5},
}

// LimitsFor returns the limits of tier. Unknown tiers get base limits.
func LimitsFor(tier auth.Tier) Limits {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits[auth.TierBase]
}

// QuotaExceededError is the typed cause of a quota denial
type QuotaExceededError struct {
	Resource string
	Tier     auth.Tier
	Current  int64
	Limit    int64
}

func (e *QuotaExceededError) Error() string {
	switch e.Resource {
	case "members":
		return fmt.Sprintf("Your %s plan allows a maximum of %d members per workspace", e.Tier, e.Limit)
	default:
		return fmt.Sprintf("Your %s plan allows a maximum of %d %s", e.Tier, e.Limit, e.Resource)
	}
}

// Request describes the action being checked
type Request struct {
	Action      Action
	WorkspaceID string
	// RequestedTokens is only read for ActionGenerateContent
	RequestedTokens int
}

// Decision is the result of Check
type Decision struct {
	Allowed bool
	// Tokens is the clamped budget for ActionGenerateContent
	Tokens int
}
