package rbac

import (
	"net/http"

	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/contextkeys"
	"github.com/platinummonkey/inkwell/pkg/httputil"
)

// RequireSystemAdmin rejects callers that are not system administrators.
// It must run after the authentication middleware.
func RequireSystemAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, _ := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
		if authCtx == nil || authCtx.User == nil {
			httputil.WriteUnauthorized(w, MsgNotAuthenticated)
			return
		}
		if !authCtx.User.IsSystemAdmin {
			httputil.WriteForbidden(w, MsgNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
