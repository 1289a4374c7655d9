// Package request tags every request with an id for log correlation.
package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"propnest/pkg/requestcontext"
)

// Header carries the request id in and out.
const Header = "X-Request-ID"

const maxInboundIDLength = 128

// RequestID reuses a caller supplied X-Request-ID or mints a new one, stores
// it in the context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get(Header))
		if reqID == "" || len(reqID) > maxInboundIDLength {
			reqID = uuid.NewString()
		}
		w.Header().Set(Header, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
