// Package gotrue is a [provider.Provider] for GoTrue-compatible hosted auth
// APIs (the /auth/v1 surface of hosted Postgres platforms).
//
// The client keeps the active session in memory and mirrors it to a
// [session.Storage] blob so a restarted process can resume it. The first
// Subscribe restores that blob, refreshing it when the access token has
// expired, and reports the result as INITIAL_SESSION.
//
// Every request passes through a circuit breaker. Only transport failures and
// 5xx answers count against it; auth rejections are ordinary results.
package gotrue
