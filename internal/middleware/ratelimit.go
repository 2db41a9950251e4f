package middleware

import (
	"context"
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxKeys = 100000
	// minPurgeInterval bounds how often a full key space is scanned for expired buckets.
	minPurgeInterval = time.Second
)

// Limiter is a fixed-window request counter. Allowed calls consume one unit of
// the window; denied calls report the whole seconds until the window resets.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter int)
}

type rateBucket struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

func (b *rateBucket) expired(now time.Time) bool {
	return now.Sub(b.windowStart) >= b.window
}

// MemoryRateLimiter keeps buckets in a bounded LRU. Expiry is checked on access,
// so there is no sweeper. A bucket is only dropped once its window has elapsed:
// when maxKeys live buckets exist, new keys are admitted without being tracked
// rather than evicting a live counter.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	buckets   *lru.Cache[string, *rateBucket]
	maxKeys   int
	lastPurge time.Time
	now       func() time.Time
}

func NewMemoryRateLimiter(maxKeys int) *MemoryRateLimiter {
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	// lru.New only fails for a non-positive size.
	buckets, _ := lru.New[string, *rateBucket](maxKeys)
	return &MemoryRateLimiter{
		buckets: buckets,
		maxKeys: maxKeys,
		now:     time.Now,
	}
}

func (rl *MemoryRateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	bucket, ok := rl.buckets.Get(key)
	switch {
	case ok && bucket.expired(now):
		bucket.count = 0
		bucket.windowStart = now
		bucket.window = window
	case !ok:
		if rl.buckets.Len() >= rl.maxKeys && !rl.purgeExpired(now) {
			log.Warn().Int("maxKeys", rl.maxKeys).Msg("rate limiter key space full, request not tracked")
			return true, 0
		}
		bucket = &rateBucket{windowStart: now, window: window}
		rl.buckets.Add(key, bucket)
	}

	if bucket.count >= limit {
		return false, retryAfterSeconds(bucket.windowStart.Add(window).Sub(now), window)
	}

	bucket.count++
	return true, 0
}

// purgeExpired removes buckets whose window has elapsed and reports whether
// there is room for a new key. Scans run at most once per minPurgeInterval.
func (rl *MemoryRateLimiter) purgeExpired(now time.Time) bool {
	if now.Sub(rl.lastPurge) < minPurgeInterval {
		return false
	}
	rl.lastPurge = now

	for _, key := range rl.buckets.Keys() {
		if bucket, ok := rl.buckets.Peek(key); ok && bucket.expired(now) {
			rl.buckets.Remove(key)
		}
	}
	return rl.buckets.Len() < rl.maxKeys
}

// retryAfterSeconds rounds remaining up to whole seconds within [1, window].
func retryAfterSeconds(remaining, window time.Duration) int {
	secs := int(math.Ceil(remaining.Seconds()))
	maxSecs := int(math.Ceil(window.Seconds()))
	if secs > maxSecs {
		secs = maxSecs
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
