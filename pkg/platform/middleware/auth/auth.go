package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "propnest/pkg/domain"
	dErrors "propnest/pkg/domain-errors"
	"propnest/pkg/platform/httputil"
	"propnest/pkg/platform/middleware/metadata"
	request "propnest/pkg/platform/middleware/request"
	"propnest/pkg/requestcontext"
)

// TokenValidator turns a bearer token into the calling actor.
type TokenValidator interface {
	ValidateToken(tokenString string) (id.Actor, error)
}

var (
	errMissingToken = dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header")
	errInvalidToken = dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
)

// Authenticate resolves the actor from a bearer token when one is present.
// Requests without an Authorization header pass through anonymously so
// public reads share the router with authenticated routes. A malformed or
// invalid token is rejected outright.
func Authenticate(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - malformed authorization header",
					"request_id", request.GetRequestID(ctx),
					"client_ip", metadata.GetClientIP(ctx),
				)
				httputil.WriteError(w, errMissingToken)
				return
			}

			actor, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
					"client_ip", metadata.GetClientIP(ctx),
				)
				httputil.WriteError(w, errInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}

// RequireAuth rejects requests that Authenticate left anonymous.
func RequireAuth(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.UserID(ctx).IsNil() {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", request.GetRequestID(ctx),
					"client_ip", metadata.GetClientIP(ctx),
				)
				httputil.WriteError(w, errMissingToken)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
