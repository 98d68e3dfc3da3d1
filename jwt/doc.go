// Package jwt issues and reads storefront access tokens.
//
// [Manager] signs and verifies tokens for providers that own a signing key.
// [ParseUnverified] is for clients that only hold the token: it extracts the
// identity and expiry without trusting the signature, which is acceptable
// because the token is only used to describe the local session, never to
// authorize a request.
package jwt
