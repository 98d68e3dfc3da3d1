package session

import (
	"errors"
	"time"
)

// DefaultKey is the storage key under which providers persist the session blob.
const DefaultKey = "storefront-auth-token"

var (
	// ErrNotFound is returned by [Storage.Get] when no blob is stored under the key.
	ErrNotFound = errors.New("session blob not found")
	// ErrCorrupt is returned when a blob cannot be decoded or lacks a numeric expires_at.
	ErrCorrupt = errors.New("session blob corrupt")
	// ErrStorageUnavailable wraps backend I/O failures.
	ErrStorageUnavailable = errors.New("session storage unavailable")
)

// expiryProbe decodes only the field the pre-flight check relies on.
type expiryProbe struct {
	ExpiresAt *float64 `json:"expires_at"`
}

// Expired reports whether an epoch-seconds expiry lies before now.
func Expired(expiresAt int64, now time.Time) bool {
	return expiresAt < now.Unix()
}
