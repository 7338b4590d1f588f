package session

import (
	"sync"
	"time"
)

type bucket struct {
	minute int64
	count  int
}

// RateLimiter caps requests per identity per wall-clock minute. Minute
// rollover is detected lazily on the next call; stale buckets are
// overwritten, so state stays O(active identities).
type RateLimiter struct {
	limit int
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]bucket
}

func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{limit: limit, now: time.Now, buckets: make(map[string]bucket)}
}

// NewRateLimiterWithClock is for tests that need a deterministic clock.
func NewRateLimiterWithClock(limit int, now func() time.Time) *RateLimiter {
	l := NewRateLimiter(limit)
	l.now = now
	return l
}

func (l *RateLimiter) Limit() int { return l.limit }

// Allow admits exactly limit requests per identity per minute bucket.
// Denied calls do not consume budget.
func (l *RateLimiter) Allow(identity string) bool {
	key := l.now().Unix() / 60

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[identity]
	if !ok || b.minute != key {
		l.buckets[identity] = bucket{minute: key, count: 1}
		return true
	}
	if b.count >= l.limit {
		return false
	}
	b.count++
	l.buckets[identity] = b
	return true
}
