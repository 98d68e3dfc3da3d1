package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*miniredis.Miniredis, *Limiter) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, New(client, "test", map[string]Policy{
		"signin": {MaxAttempts: 3, Window: time.Minute},
	})
}

func TestLimiterFixedWindow(t *testing.T) {
	mr, l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, "signin", "A@B.com"); err != nil {
			t.Fatalf("attempt %d: unexpected Check error %v", i, err)
		}
		if err := l.Hit(ctx, "signin", "a@b.com"); err != nil {
			t.Fatalf("attempt %d: unexpected Hit error %v", i, err)
		}
	}
	if err := l.Check(ctx, "signin", "a@b.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Hit(ctx, "signin", "a@b.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on hit, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.Check(ctx, "signin", "a@b.com"); err != nil {
		t.Fatalf("expected window reset, got %v", err)
	}
}

func TestLimiterResetAndUnknownScope(t *testing.T) {
	_, l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = l.Hit(ctx, "signin", "u")
	}
	if err := l.Reset(ctx, "signin", "u"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := l.Check(ctx, "signin", "u"); err != nil {
		t.Fatalf("expected cleared counter, got %v", err)
	}
	if err := l.Hit(ctx, "unconfigured", "u"); err != nil {
		t.Fatalf("unconfigured scope must never limit, got %v", err)
	}
}
