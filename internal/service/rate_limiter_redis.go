package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisRateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`

type redisRateLimiter struct {
	client  redisEvaler
	prefix  string
	timeout time.Duration
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// NewRedisRateLimiter usa contadores de ventana fija en Redis. Devuelve nil si no hay cliente.
func NewRedisRateLimiter(client *redis.Client) RateLimiter {
	if client == nil {
		return nil
	}
	return &redisRateLimiter{
		client:  client,
		prefix:  "rl:",
		timeout: 500 * time.Millisecond,
	}
}

func (l *redisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateDecision, error) {
	if limit <= 0 {
		return RateDecision{Allowed: true, Limit: limit}, nil
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res, err := l.client.Eval(ctx, redisRateLimitScript, []string{l.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return RateDecision{Allowed: true, Limit: limit, Remaining: limit}, err
	}
	if len(res) != 2 {
		return RateDecision{Allowed: true, Limit: limit, Remaining: limit}, fmt.Errorf("unexpected rate limit reply: %v", res)
	}
	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if count > limit {
		retryAfter := ttl
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return RateDecision{Allowed: false, Limit: limit, Remaining: 0, RetryAfter: retryAfter}, nil
	}
	return RateDecision{Allowed: true, Limit: limit, Remaining: limit - count}, nil
}
