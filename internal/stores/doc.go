// Package stores provides a Redis-backed store for short-lived one-time
// codes used by sign-up confirmation and password recovery.
//
// # Design
//
// A record is binary-encoded with a version byte and stored under
// <prefix>:<purpose>:<email> with a TTL, so issuing a new code for the same
// purpose and email replaces the old one. Consume uses WATCH/MULTI with retry
// on contention. Records are single-use and deleted after a match, after
// expiry, or once the attempt budget is spent. Codes are compared by digest
// in constant time.
//
// # What this package must NOT do
//
//   - Generate codes or send them anywhere.
//   - Log or store plaintext codes.
package stores
