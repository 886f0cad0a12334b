package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/contextkeys"
	"github.com/platinummonkey/inkwell/pkg/httputil"
	"github.com/platinummonkey/inkwell/pkg/observability"
)

// MsgNotAuthenticated is returned for missing or rejected credentials
const MsgNotAuthenticated = "Not authorized to access this route"

// Resolver turns a bearer token into an authenticated caller
type Resolver interface {
	Resolve(ctx context.Context, rawToken string) (*auth.AuthContext, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	resolver Resolver
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver Resolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Handler wraps an HTTP handler with authentication. Requests without a
// valid bearer token are rejected with 401.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, MsgNotAuthenticated)
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httputil.WriteUnauthorized(w, MsgNotAuthenticated)
			return
		}

		authCtx, err := m.resolver.Resolve(r.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			if apperr.KindOf(err) == apperr.KindInternal {
				httputil.WriteAppError(w, r, err)
				return
			}
			httputil.WriteUnauthorized(w, MsgNotAuthenticated)
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = contextkeys.WithUserID(ctx, authCtx.UserID())
		ctx = observability.WithLogger(ctx, observability.FromContext(ctx).WithField("user_id", authCtx.UserID()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	return AuthContextFrom(r.Context())
}

// AuthContextFrom extracts auth context from ctx
func AuthContextFrom(ctx context.Context) *auth.AuthContext {
	authCtx, ok := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// Caller returns the authenticated user or nil
func Caller(r *http.Request) *auth.User {
	authCtx := GetAuthContext(r)
	if authCtx == nil {
		return nil
	}
	return authCtx.User
}
