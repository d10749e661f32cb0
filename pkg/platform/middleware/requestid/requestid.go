// Package requestid assigns each request a correlation ID so log lines and
// audit events from one request can be tied together.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"refhub/pkg/requestcontext"
)

// Header is the response header carrying the request ID.
const Header = "X-Request-ID"

// Middleware reuses an inbound X-Request-ID when present, otherwise generates
// one, and stores it in the context and the response header.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(Header, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
