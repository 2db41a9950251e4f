package middleware

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMemoryLimiter(maxKeys int) (*MemoryRateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewMemoryRateLimiter(maxKeys)
	limiter.now = clock.Now
	return limiter, clock
}

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("window boundary", func(t *testing.T) {
		limiter, clock := newTestMemoryLimiter(0)

		for i := 1; i <= 5; i++ {
			allowed, _ := limiter.Check(ctx, "ip:1.2.3.4", 5, time.Hour)
			assert.True(t, allowed, "request %d should be allowed", i)
		}

		allowed, retryAfter := limiter.Check(ctx, "ip:1.2.3.4", 5, time.Hour)
		assert.False(t, allowed)
		assert.Greater(t, retryAfter, 0)
		assert.LessOrEqual(t, retryAfter, 3600)

		clock.Advance(time.Hour)
		allowed, _ = limiter.Check(ctx, "ip:1.2.3.4", 5, time.Hour)
		assert.True(t, allowed)
	})

	t.Run("retry after counts down", func(t *testing.T) {
		limiter, clock := newTestMemoryLimiter(0)

		allowed, _ := limiter.Check(ctx, "k", 1, time.Hour)
		require.True(t, allowed)

		_, retryAfter := limiter.Check(ctx, "k", 1, time.Hour)
		assert.Equal(t, 3600, retryAfter)

		clock.Advance(20*time.Minute + 500*time.Millisecond)
		_, retryAfter = limiter.Check(ctx, "k", 1, time.Hour)
		assert.Equal(t, 2400, retryAfter)

		clock.Advance(40*time.Minute - time.Second)
		allowed, retryAfter = limiter.Check(ctx, "k", 1, time.Hour)
		assert.False(t, allowed)
		assert.Equal(t, 1, retryAfter)
	})

	t.Run("denied calls do not extend the window", func(t *testing.T) {
		limiter, clock := newTestMemoryLimiter(0)

		limiter.Check(ctx, "k", 1, time.Minute)
		for i := 0; i < 10; i++ {
			clock.Advance(5 * time.Second)
			allowed, _ := limiter.Check(ctx, "k", 1, time.Minute)
			assert.False(t, allowed)
		}

		clock.Advance(10 * time.Second)
		allowed, _ := limiter.Check(ctx, "k", 1, time.Minute)
		assert.True(t, allowed)
	})

	t.Run("tracks keys separately", func(t *testing.T) {
		limiter, _ := newTestMemoryLimiter(0)

		limiter.Check(ctx, "account:a", 1, time.Hour)
		allowed, _ := limiter.Check(ctx, "account:a", 1, time.Hour)
		assert.False(t, allowed)

		allowed, _ = limiter.Check(ctx, "account:b", 1, time.Hour)
		assert.True(t, allowed)
	})

	t.Run("full key space never evicts a live bucket", func(t *testing.T) {
		limiter, _ := newTestMemoryLimiter(2)

		limiter.Check(ctx, "auth:ip:10.0.0.9", 1, time.Hour)
		allowed, _ := limiter.Check(ctx, "auth:ip:10.0.0.9", 1, time.Hour)
		require.False(t, allowed)
		limiter.Check(ctx, "b", 1, time.Hour)

		for i := 0; i < 100; i++ {
			allowed, _ := limiter.Check(ctx, fmt.Sprintf("registration:email:%d", i), 1, time.Hour)
			assert.True(t, allowed)
		}

		assert.Equal(t, 2, limiter.buckets.Len())
		allowed, retryAfter := limiter.Check(ctx, "auth:ip:10.0.0.9", 1, time.Hour)
		assert.False(t, allowed)
		assert.Greater(t, retryAfter, 0)
	})

	t.Run("full key space reclaims expired buckets", func(t *testing.T) {
		limiter, clock := newTestMemoryLimiter(2)

		limiter.Check(ctx, "a", 1, time.Minute)
		limiter.Check(ctx, "b", 1, time.Hour)
		clock.Advance(2 * time.Minute)

		allowed, _ := limiter.Check(ctx, "c", 1, time.Hour)
		assert.True(t, allowed)
		assert.False(t, limiter.buckets.Contains("a"))
		assert.True(t, limiter.buckets.Contains("b"))
		assert.True(t, limiter.buckets.Contains("c"))

		allowed, _ = limiter.Check(ctx, "c", 1, time.Hour)
		assert.False(t, allowed)
	})
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		window    time.Duration
		expected  int
	}{
		{"rounds up", 1500 * time.Millisecond, time.Hour, 2},
		{"never zero", 0, time.Hour, 1},
		{"never negative", -time.Second, time.Hour, 1},
		{"capped at window", 2 * time.Hour, time.Hour, 3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, retryAfterSeconds(tt.remaining, tt.window))
		})
	}
}

func TestRedisRateLimiter(t *testing.T) {
	ctx := context.Background()

	newLimiter := func(t *testing.T) (*RedisRateLimiter, *miniredis.Miniredis) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return NewRedisRateLimiter(client), mr
	}

	t.Run("window boundary", func(t *testing.T) {
		limiter, mr := newLimiter(t)

		for i := 1; i <= 5; i++ {
			allowed, _ := limiter.Check(ctx, "ip:1.2.3.4", 5, time.Hour)
			assert.True(t, allowed, "request %d should be allowed", i)
		}

		allowed, retryAfter := limiter.Check(ctx, "ip:1.2.3.4", 5, time.Hour)
		assert.False(t, allowed)
		assert.Greater(t, retryAfter, 0)
		assert.LessOrEqual(t, retryAfter, 3600)

		mr.FastForward(time.Hour)
		allowed, _ = limiter.Check(ctx, "ip:1.2.3.4", 5, time.Hour)
		assert.True(t, allowed)
	})

	t.Run("denied calls do not increment", func(t *testing.T) {
		limiter, mr := newLimiter(t)

		limiter.Check(ctx, "k", 2, time.Minute)
		limiter.Check(ctx, "k", 2, time.Minute)
		limiter.Check(ctx, "k", 2, time.Minute)
		limiter.Check(ctx, "k", 2, time.Minute)

		value, err := mr.Get(rateLimitKeyPrefix + "k")
		require.NoError(t, err)
		assert.Equal(t, "2", value)
	})

	t.Run("fails open when redis is unavailable", func(t *testing.T) {
		limiter, mr := newLimiter(t)
		mr.Close()

		for i := 0; i < 3; i++ {
			allowed, retryAfter := limiter.Check(ctx, "k", 1, time.Minute)
			assert.True(t, allowed)
			assert.Equal(t, 0, retryAfter)
		}
	})
}
