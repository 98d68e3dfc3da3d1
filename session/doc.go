// Package session persists the provider's credential blob and enforces its
// expiry before anything else reads it.
//
// # Blob format
//
// The blob is the JSON encoding of a provider session. The only field this
// package interprets is the numeric "expires_at" (epoch seconds). A blob without
// a numeric expires_at is treated as corrupt.
//
// # Storage backends
//
// [Storage] abstracts the local persisted store. [MemoryStorage] serves tests
// and short-lived processes, [FileStorage] mirrors a browser's local storage as
// one 0600 file per key, and [RedisStorage] shares the blob across processes
// with a TTL tied to the blob's own expiry.
//
// # What this package must NOT do
//
//   - Import storeauth or profile (no upward imports).
//   - Refresh, verify, or otherwise interpret the access token.
package session
