// Package internal holds helpers private to storeauth: one-time code and
// opaque token generation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - rate: Redis fixed-window attempt counters
//   - stores: short-lived one-time code records
package internal
