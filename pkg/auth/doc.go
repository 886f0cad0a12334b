// Package auth defines the caller identity shared by every inkwell service.
//
// # Overview
//
// A caller is a User resolved from a bearer token by pkg/identity. The user
// carries a subscription Tier that the quota engine reads and a system-admin
// flag that unlocks the /users administration routes.
//
// # Roles
//
// Workspace roles are flat. There is no hierarchy between them:
//
//	RoleAdmin  - manage the workspace and its members
//	RoleEditor - create, edit and generate content
//	RoleViewer - read-only access
//
// The workspace owner is not a role. Ownership is a field on the workspace
// and RoleOwner only appears as an annotation in workspace listings.
//
// # Keys
//
//	key, err := auth.GenerateKey() // 64 hex chars
//	auth.MaskKey(key)              // "abcde...vwxyz"
//	auth.HashToken(bearer)         // SHA256, used for claim cache keys
package auth
