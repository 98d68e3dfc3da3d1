// Package storeauth is the storefront session store: it owns "who is logged
// in", keeps it in sync with an auth provider's event stream and resolves the
// role-bearing profile used for authorization.
//
// A [Store] is built with [Builder], started once with [Store.Start] and torn
// down with [Store.Dispose]. Readers take immutable [Snapshot] copies or
// observe changes with [Store.Subscribe]. Operations (SignIn, SignUp, SignOut,
// ResetPassword, ConfirmPasswordReset, ConfirmSignUp, ResendSignUpCode) never
// return Go errors or panic; they report a uniform [Result].
//
// # Architecture boundaries
//
// storeauth is the public surface. Backends live in sub-packages: provider
// (contract plus gotrue and local implementations), profile (Redis, SQL and
// REST lookups) and session (persisted credential storage). Audit dispatch
// lives under internal/ and is exposed only through the [AuditSink] alias.
//
// # What this package must NOT do
//
//   - Write the persisted credential blob. It only removes stale blobs before
//     subscribing; the provider owns the blob otherwise.
//   - Apply any asynchronous result after Dispose or after a newer clear.
//   - Trust a role before a profile was fetched or synthesized.
package storeauth
