// Package rbac decides who may act on a workspace.
//
// # Overview
//
// Access is decided per request from live store reads:
//
//  1. The workspace must exist, otherwise NotFound.
//  2. The owner is always allowed, whatever roles the operation requires.
//  3. Anyone else needs an accepted membership whose role is in the
//     operation's RoleSet. Pending invitations grant nothing.
//
// Roles are compared by set membership. There is no hierarchy, so an
// operation that should admit Admins and Editors lists both:
//
//	decision, err := engine.Require(ctx, caller, workspaceID, rbac.Writers)
//	if err != nil {
//		return err // NotFound, Forbidden or Internal
//	}
//
// Operations addressed by membership id resolve the workspace first:
//
//	membership, _, err := engine.RequireMembership(ctx, caller, id, rbac.AdminOnly)
//
// # Ownership
//
// MatchesCaller is the single identity comparison used for workspace
// owners, membership subjects and API key owners.
package rbac
