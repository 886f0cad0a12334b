// Package quota enforces subscription tier limits.
//
// Two limits are hard and checked before a create:
//
//	tier   workspaces owned   members per workspace
//	base   3                  2
//	pro    10                 5
//
// A request is denied when the current count is already at the limit.
// The token budget for content generation is soft: base callers are
// silently clamped to 500 tokens, pro callers are not clamped.
package quota
