// Package rate provides Redis-backed fixed-window attempt counters.
//
// # Window semantics
//
// INCR + EXPIRE on the first hit of a window. Keys are
// <prefix>:rl:<scope>:<subject>, so one Limiter can guard several flows
// (sign-in, code sends) with independent budgets.
//
// # What this package must NOT do
//
//   - Decide what happens when a budget is exhausted; callers map
//     [ErrRateLimited] to their own error.
package rate
