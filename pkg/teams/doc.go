// Package teams manages workspace memberships and the invitation lifecycle.
//
// A membership is either pending (an invitation, possibly for an email
// address with no user record yet) or active. Only active memberships grant
// access. Invitations are accepted by the user whose email they were sent
// to, and pending invitations older than the configured TTL are purged by
// the janitor through PurgeExpired.
//
// Every mutation runs authorize, then quota, then the store write, so a
// failed check never leaves a partial change. Notification is best effort:
// a delivery failure is logged and returned as a warning.
package teams
