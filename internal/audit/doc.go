// Package audit implements async dispatch of auth lifecycle events.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, logrus, no-op).
//   - [Dispatcher]: buffered async relay that either drops or blocks when full.
//   - [Event]: one record with timestamp, type, user, role and metadata.
//
// This package buffers and delivers. Deciding which events exist belongs to
// the session store.
//
// # What this package must NOT do
//
//   - Filter events based on business logic.
//   - Import storeauth or any sibling internal package.
package audit
