package middleware

import (
	"net/http"

	"github.com/MrEthical07/storeauth"
	"github.com/MrEthical07/storeauth/permission"
)

// RequireRole admits sessions whose trusted role is one of roles.
func RequireRole(store *storeauth.Store, roles ...storeauth.Role) func(http.Handler) http.Handler {
	allowed := make(map[storeauth.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return Guard(store, func(snap storeauth.Snapshot) bool {
		if !snap.RoleTrusted {
			return false
		}
		_, ok := allowed[snap.AuthRole]
		return ok
	})
}

// RequirePermission admits sessions whose trusted role grants perm in rm.
func RequirePermission(store *storeauth.Store, rm *permission.RoleManager, perm string) func(http.Handler) http.Handler {
	return Guard(store, func(snap storeauth.Snapshot) bool {
		if rm == nil || !snap.RoleTrusted {
			return false
		}
		return rm.Allowed(snap.AuthRole.String(), perm)
	})
}
