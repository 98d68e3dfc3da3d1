package session

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/MrEthical07/storeauth/provider"
)

// Encode serializes a provider session into the persisted blob format.
func Encode(s *provider.Session) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil session", ErrCorrupt)
	}
	if s.ExpiresAt <= 0 && s.ExpiresIn > 0 {
		out := *s
		out.ExpiresAt = time.Now().Unix() + s.ExpiresIn
		s = &out
	}
	return json.Marshal(s)
}

// Decode parses a persisted blob. It fails with [ErrCorrupt] when the blob is
// not JSON or carries no numeric expires_at.
func Decode(data []byte) (*provider.Session, error) {
	if _, err := ExpiresAt(data); err != nil {
		return nil, err
	}
	var s provider.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &s, nil
}

// ExpiresAt returns the blob's embedded expiry.
func ExpiresAt(data []byte) (time.Time, error) {
	var probe expiryProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if probe.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing expires_at", ErrCorrupt)
	}
	v := *probe.ExpiresAt
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > math.MaxInt64/2 {
		return time.Time{}, fmt.Errorf("%w: expires_at out of range", ErrCorrupt)
	}
	return time.Unix(int64(v), 0), nil
}
