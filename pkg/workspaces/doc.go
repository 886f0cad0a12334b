// Package workspaces implements workspace CRUD.
//
// Creating a workspace is limited by the caller's subscription tier and
// also creates the owner's accepted Admin membership, so listings that
// enumerate memberships include the owner. Reading needs any role, updating
// needs Admin, and only the owner may delete.
package workspaces
