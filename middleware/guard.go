package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/storeauth"
)

type snapshotContextKey struct{}

// SnapshotFromContext returns the snapshot a guard admitted the request with.
func SnapshotFromContext(ctx context.Context) (storeauth.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotContextKey{}).(storeauth.Snapshot)
	return snap, ok
}

// Check decides whether a resolved session may reach the wrapped handler.
type Check func(storeauth.Snapshot) bool

// Guard admits requests once the store holds a resolved session that passes
// check. A nil check admits any resolved session.
//
// Responses:
//   - 503 while the store is bootstrapping, resolving a profile or torn down
//   - 401 when no session is present
//   - 403 when check rejects the session
func Guard(store *storeauth.Store, check Check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			snap := store.Snapshot()
			switch snap.State {
			case storeauth.StateBootstrapping, storeauth.StateAuthenticatedPendingProfile, storeauth.StateTornDown:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session loading", http.StatusServiceUnavailable)
				return
			case storeauth.StateUnauthenticated:
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if check != nil && !check(snap) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), snapshotContextKey{}, snap)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession admits any resolved session.
func RequireSession(store *storeauth.Store) func(http.Handler) http.Handler {
	return Guard(store, nil)
}
