package redislimiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limits map[string]Limit) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, limits), mr
}

func TestAllowNamed_EnforcesLimit(t *testing.T) {
	l, _ := newTestLimiter(t, map[string]Limit{"consume": {Limit: 3, Window: time.Minute}})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, err := l.AllowNamed(ctx, "consume", "u1")
		if err != nil || !ok {
			t.Fatalf("attempt %d: expected allow, got %v %v", i, ok, err)
		}
	}
	ok, err := l.AllowNamed(ctx, "consume", "u1")
	if err != nil || ok {
		t.Fatalf("expected deny, got %v %v", ok, err)
	}
	if ok, _ := l.AllowNamed(ctx, "consume", "u2"); !ok {
		t.Fatalf("expected independent key allowed")
	}
}

func TestAllowNamed_WindowSlides(t *testing.T) {
	l, _ := newTestLimiter(t, map[string]Limit{"login": {Limit: 1, Window: time.Minute}})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := l.AllowNamed(ctx, "login", "ip"); !ok {
		t.Fatalf("expected first attempt allowed")
	}
	if ok, _ := l.AllowNamed(ctx, "login", "ip"); ok {
		t.Fatalf("expected second attempt denied")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := l.AllowNamed(ctx, "login", "ip"); !ok {
		t.Fatalf("expected attempt allowed after window")
	}
}

func TestAllowNamed_RedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, nil)
	mr.Close()
	if _, err := l.AllowNamed(context.Background(), "default", "k"); err == nil {
		t.Fatalf("expected error when redis is unreachable")
	}
}
