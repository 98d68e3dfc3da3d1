// Package profile reads and writes application profile rows keyed by the
// auth provider's subject id.
//
// Three backends are provided: [RedisStore] for self-hosted deployments,
// [SQLStore] for a relational profiles table (pgx in production), and
// [RESTStore] for a hosted database exposed over a PostgREST-style API.
//
// Backends report a missing row as [ErrNotFound] and a cancelled request as
// [ErrCanceled] so callers can decide whether retrying makes sense.
package profile
