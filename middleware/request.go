package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/MrEthical07/storeauth"
)

// RequestIDHeader carries the caller's request id.
const RequestIDHeader = "X-Request-ID"

// RequestMetadata copies the client address, user agent and request id
// into the request context so store logs and audit events carry them. A
// request id is generated when the caller sent none.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := storeauth.WithRequestID(r.Context(), id)
		ctx = storeauth.WithClientIP(ctx, clientIP(r))
		if ua := r.UserAgent(); ua != "" {
			ctx = storeauth.WithUserAgent(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
