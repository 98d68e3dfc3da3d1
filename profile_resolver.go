package storeauth

import (
	"context"
	"time"

	"github.com/MrEthical07/storeauth/profile"
	"github.com/sirupsen/logrus"
)

// resolveProfile looks the profile up by subject id, retrying transient
// failures and missing rows up to Profile.MaxAttempts. A canceled lookup is
// never retried. When no row is found it returns a fallback synthesized from
// the identity, so the result is never nil.
func (s *Store) resolveProfile(ctx context.Context, user *AuthUser) (*Profile, int) {
	log := s.logger.WithField("user_id", user.ID)
	maxAttempts := s.cfg.Profile.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	for attempts < maxAttempts {
		attempts++
		s.metrics.Inc(MetricProfileLookupAttempt)

		row, err := s.lookupProfile(ctx, user.ID)
		if err == nil && row != nil {
			s.metrics.Inc(MetricProfileResolved)
			log.WithField("attempts", attempts).Debug("profile resolved")
			return profileFromRow(row), attempts
		}
		if err == nil {
			err = profile.ErrNotFound
		}

		if profile.IsCanceled(err) || ctx.Err() != nil {
			s.metrics.Inc(MetricProfileCanceled)
			log.WithError(err).Debug("profile lookup canceled")
			break
		}

		s.metrics.Inc(MetricProfileLookupFailure)
		log.WithError(err).WithFields(logrus.Fields{
			"attempt":      attempts,
			"max_attempts": maxAttempts,
		}).Debug("profile lookup failed")

		if attempts < maxAttempts && !sleepContext(ctx, s.cfg.Profile.RetryDelay) {
			s.metrics.Inc(MetricProfileCanceled)
			break
		}
	}

	fb := fallbackProfile(user, s.now())
	s.metrics.Inc(MetricProfileFallback)
	log.WithFields(logrus.Fields{
		"attempts": attempts,
		"role":     string(fb.Role),
	}).Warn("using fallback profile from identity attributes")
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditProfileFallback,
		UserID:    user.ID,
		Email:     user.Email,
		Role:      string(fb.Role),
		Success:   true,
	})
	return fb, attempts
}

func (s *Store) lookupProfile(ctx context.Context, id string) (*profile.Row, error) {
	if s.cfg.Profile.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Profile.AttemptTimeout)
		defer cancel()
	}
	return s.profiles.GetProfileByID(ctx, id)
}

// fallbackProfile builds a profile from identity attributes alone.
func fallbackProfile(user *AuthUser, now time.Time) *Profile {
	created := user.CreatedAt
	if created.IsZero() {
		created = now
	}
	return &Profile{
		ID:        user.ID,
		Email:     user.Email,
		Role:      ParseRole(user.Attr(AttrRole)),
		FullName:  user.Attr(AttrFullName),
		Phone:     user.Attr(AttrPhone),
		Currency:  user.Attr(AttrCurrency),
		CountryID: user.Attr(AttrCountryID),
		CreatedAt: created,
		UpdatedAt: created,
		Fallback:  true,
	}
}

// sleepContext waits d or until ctx is done. It reports whether the full
// delay elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
