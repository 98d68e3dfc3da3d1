// Package local is a self-hosted [provider.Provider] backed by Redis.
//
// Accounts live in Redis hashes keyed by normalized email with Argon2id
// password hashes. Sign-up confirmation and password recovery use six-digit
// one-time codes delivered through a [Mailer]. Access tokens are HS256 or
// Ed25519 JWTs minted by [jwt.Manager]; refresh tokens are opaque and stored
// in Redis with their own TTL.
//
// When an account is confirmed the provider materializes the application
// profile row through a [profile.Writer], optionally after [Config.TriggerDelay]
// to mimic a database trigger that has not fired yet.
//
// The provider is meant for development, tests and single-node deployments;
// point the store at provider/gotrue for a hosted auth platform.
package local
