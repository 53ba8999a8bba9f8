package memorylimiter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter is an in-memory sliding-window rate limiter for single-node
// deployments and tests.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	windows map[string][]time.Time
	now     func() time.Time
}

// New constructs a limiter. Buckets without an entry fall back to the
// "default" entry, then to 100 per minute.
func New(limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{limits: limits, windows: make(map[string][]time.Time), now: time.Now}
}

func (l *Limiter) get(bucket string) Limit {
	if v, ok := l.limits[bucket]; ok {
		return v
	}
	if v, ok := l.limits["default"]; ok {
		return v
	}
	return Limit{Limit: 100, Window: time.Minute}
}

// AllowNamed records one attempt for key in bucket and reports whether it is
// within the bucket's limit. Denied attempts are not recorded.
func (l *Limiter) AllowNamed(ctx context.Context, bucket, key string) (bool, error) {
	_ = ctx
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}
	lim := l.get(bucket)
	now := l.now()
	cutoff := now.Add(-lim.Window)
	id := bucket + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.windows[id]
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	ts = ts[i:]

	if len(ts) >= lim.Limit {
		l.windows[id] = ts
		return false, nil
	}
	l.windows[id] = append(ts, now)
	return true, nil
}

// Sweep drops keys whose whole window has passed.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, ts := range l.windows {
		if len(ts) == 0 {
			delete(l.windows, id)
			continue
		}
		bucket, _, _ := strings.Cut(id, ":")
		if !ts[len(ts)-1].After(now.Add(-l.get(bucket).Window)) {
			delete(l.windows, id)
		}
	}
}
