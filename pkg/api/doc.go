// Package api exposes the workspace platform over JSON/HTTP.
//
// Every route sits behind the bearer-token authentication middleware and
// answers with the {success, data} envelope from pkg/httputil:
//
//	/workspaces                         workspace CRUD, POST is quota-gated
//	/teams, /teams/invite, /teams/{id}  memberships and the invitation lifecycle
//	/content, /content/generate         content CRUD and rate-limited generation
//	/api-keys                           the caller's provider keys
//	/users/me, /users                   profile, subscription, system administration
//
// Handler groups implement RouteRegistrar and are mounted by NewServer.
package api
