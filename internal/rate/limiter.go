package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy is the budget for one scope.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter enforces per-scope, per-subject attempt budgets.
type Limiter struct {
	redis    redis.UniversalClient
	prefix   string
	policies map[string]Policy
}

// New creates a [Limiter]. Scopes without a policy are never limited.
func New(redisClient redis.UniversalClient, prefix string, policies map[string]Policy) *Limiter {
	if prefix == "" {
		prefix = "sf"
	}
	copied := make(map[string]Policy, len(policies))
	for scope, p := range policies {
		copied[scope] = p
	}
	return &Limiter{redis: redisClient, prefix: prefix, policies: copied}
}

func (l *Limiter) key(scope, subject string) string {
	return l.prefix + ":rl:" + scope + ":" + strings.ToLower(strings.TrimSpace(subject))
}

// Check returns ErrRateLimited when subject already exhausted the scope budget.
func (l *Limiter) Check(ctx context.Context, scope, subject string) error {
	policy, ok := l.policies[scope]
	if !ok || policy.MaxAttempts <= 0 {
		return nil
	}

	count, err := l.redis.Get(ctx, l.key(scope, subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(policy.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Hit records one attempt and returns ErrRateLimited once the budget is exceeded.
func (l *Limiter) Hit(ctx context.Context, scope, subject string) error {
	policy, ok := l.policies[scope]
	if !ok || policy.MaxAttempts <= 0 {
		return nil
	}

	key := l.key(scope, subject)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// Fixed window: TTL is set only on the first hit.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, policy.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count > int64(policy.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the subject's counter for scope.
func (l *Limiter) Reset(ctx context.Context, scope, subject string) error {
	if err := l.redis.Del(ctx, l.key(scope, subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
