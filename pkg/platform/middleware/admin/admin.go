// Package admin gates moderation routes (listing approve and reject) to the
// ADMIN role.
package admin

import (
	"log/slog"
	"net/http"

	dErrors "propnest/pkg/domain-errors"
	"propnest/pkg/platform/httputil"
	"propnest/pkg/platform/middleware/metadata"
	request "propnest/pkg/platform/middleware/request"
	"propnest/pkg/requestcontext"
)

var errAdminRequired = dErrors.New(dErrors.CodeForbidden, "admin role required")

// RequireAdmin only lets authenticated administrators through. It must be
// mounted behind auth.RequireAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor := requestcontext.Actor(ctx)
			if actor.UserID.IsNil() || !actor.IsAdmin() {
				logger.WarnContext(ctx, "admin role required",
					"user_id", actor.UserID,
					"role", actor.Role,
					"path", r.URL.Path,
					"request_id", request.GetRequestID(ctx),
					"client_ip", metadata.GetClientIP(ctx),
				)
				httputil.WriteError(w, errAdminRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
