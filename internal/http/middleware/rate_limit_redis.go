package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// INCR and set the window expiry on first hit in a single round trip.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

type redisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisFixedWindowLimiter shares counters across replicas.
func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) Limiter {
	if prefix == "" {
		prefix = "portal_rl"
	}
	return &redisFixedWindowLimiter{client: client, prefix: prefix}
}

func (l *redisFixedWindowLimiter) Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = normalizePolicy(policy)
	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + ":" + key}, policy.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("redis rate limit: unexpected reply length %d", len(res))
	}
	count, ttlMS := int(res[0]), res[1]
	ttl := policy.Window
	if ttlMS > 0 {
		ttl = time.Duration(ttlMS) * time.Millisecond
	}
	resetAt := time.Now().Add(ttl)
	if count > policy.Limit {
		return Decision{Allowed: false, RetryAfter: ttl, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Decision{Allowed: true, Remaining: policy.Limit - count, ResetAt: resetAt}, nil
}
