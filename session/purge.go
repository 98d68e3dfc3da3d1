package session

import (
	"context"
	"errors"
	"time"
)

// PurgeOutcome describes what the pre-flight credential check did.
type PurgeOutcome uint8

const (
	// PurgeAbsent means no blob was stored.
	PurgeAbsent PurgeOutcome = iota
	// PurgeKept means the blob is still valid and was left untouched.
	PurgeKept
	// PurgeExpired means the blob's expires_at was in the past and it was removed.
	PurgeExpired
	// PurgeCorrupt means the blob could not be parsed and it was removed.
	PurgeCorrupt
)

func (o PurgeOutcome) String() string {
	switch o {
	case PurgeAbsent:
		return "absent"
	case PurgeKept:
		return "kept"
	case PurgeExpired:
		return "expired"
	case PurgeCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Removed reports whether the outcome deleted the blob.
func (o PurgeOutcome) Removed() bool {
	return o == PurgeExpired || o == PurgeCorrupt
}

// Purge removes the blob under key when its embedded expiry is before now or
// when it cannot be parsed. A valid blob is never rewritten.
func Purge(ctx context.Context, storage Storage, key string, now time.Time) (PurgeOutcome, error) {
	data, err := storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PurgeAbsent, nil
		}
		return PurgeAbsent, err
	}

	outcome := PurgeKept
	exp, err := ExpiresAt(data)
	switch {
	case err != nil:
		outcome = PurgeCorrupt
	case Expired(exp.Unix(), now):
		outcome = PurgeExpired
	}
	if !outcome.Removed() {
		return outcome, nil
	}

	if err := storage.Remove(ctx, key); err != nil {
		return outcome, err
	}
	return outcome, nil
}
