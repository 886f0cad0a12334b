// Package storage defines the inkwell data model and persistence interfaces.
//
// # Overview
//
// The store is the single source of truth for workspaces, memberships and
// the resources they protect. Nothing above it caches counts or roles;
// authorization and quota decisions always read live rows.
//
// # Architecture
//
// The layer uses interface segregation to compose focused capabilities:
//
//   - UserStore: caller identities and subscription tiers
//   - WorkspaceStore: workspaces, owner lookups and owned counts
//   - MembershipStore: memberships, pending invitations and member counts
//   - ContentStore: workspace content
//   - APIKeyStore: provider credentials owned by users
//
// These compose into Store. pkg/storage/postgres implements it with
// database/sql against PostgreSQL or SQLite.
//
// # Memberships
//
// A membership is either bound to a user or pending on an email address:
//
//	switch s := m.Subject().(type) {
//	case storage.BoundSubject:
//		// s.UserID
//	case storage.PendingSubject:
//		// s.Email
//	}
//
// An accepted membership always has a user; the schema enforces it.
//
// # Errors
//
// Lookups return ErrNotFound for missing rows and writes return ErrDuplicate
// when a uniqueness constraint fires, so services can classify without
// knowing the driver.
package storage
