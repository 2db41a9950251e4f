package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const rateLimitKeyPrefix = "ratelimit:"

// Fixed window: the first INCR of a window sets the expiry, and the key's
// remaining TTL is the time until reset. Denied calls do not increment.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = tonumber(redis.call('GET', key) or '0')
if current >= limit then
    local ttl = redis.call('PTTL', key)
    if ttl < 0 then
        redis.call('PEXPIRE', key, window)
        ttl = window
    end
    return {0, ttl}
end

local count = redis.call('INCR', key)
if count == 1 then
    redis.call('PEXPIRE', key, window)
end

return {1, redis.call('PTTL', key)}
`)

// RedisRateLimiter shares buckets between instances. Any Redis failure fails
// open: the request is allowed and a warning is logged.
type RedisRateLimiter struct {
	client redis.Scripter
}

func NewRedisRateLimiter(client redis.Scripter) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

func (rl *RedisRateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (bool, int) {
	result, err := rateLimitScript.Run(ctx, rl.client, []string{rateLimitKeyPrefix + key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis rate limit check failed, allowing request")
		return true, 0
	}

	if len(result) != 2 {
		log.Warn().Str("key", key).Msg("unexpected redis rate limit result, allowing request")
		return true, 0
	}

	if result[0] == 1 {
		return true, 0
	}
	return false, retryAfterSeconds(time.Duration(result[1])*time.Millisecond, window)
}
