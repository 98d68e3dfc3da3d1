// Package middleware gates HTTP routes on the session held by a
// storeauth.Store.
//
// # Guards
//
//   - [Guard] admits a resolved session that passes a [Check].
//   - [RequireSession] admits any resolved session.
//   - [RequireRole] admits listed roles.
//   - [RequirePermission] admits roles granted a permission by a
//     permission.RoleManager.
//
// Guards never admit a request while the store is loading or while the
// profile of a fresh session is still being resolved; those answer 503 so
// no role decision is made on an untrusted role.
//
// [RequestMetadata] attaches client IP, user agent and request id to the
// context for store logging and audit.
//
// # What this package must NOT do
//
//   - Call the identity provider.
//   - Mutate store state.
package middleware
