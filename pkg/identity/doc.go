// Package identity resolves bearer tokens into users.
//
// A token is first verified as an OIDC ID token for the configured issuer and
// client. When that fails it is treated as an access token and exchanged for
// claims at the provider's UserInfo endpoint. Verified claims are cached by
// token hash for a short time; user rows are always read from the store, so
// tier and admin changes apply on the next request.
//
// The first time a subject is seen a user row is created with the base tier.
package identity
