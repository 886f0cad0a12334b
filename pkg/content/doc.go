// Package content manages text scoped to a workspace and AI generation of
// new text.
//
// Admins and Editors write; every active role reads. The creator of a piece
// of content can always read it back. Generation runs the prompt through a
// Generator with the token budget clamped to the caller's tier.
package content
