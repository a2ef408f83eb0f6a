package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucket refills and takes from a bucket stored as a hash in one
// atomic step. It returns {allowed, tokens*1000, retry_ms}.
var tokenBucket = redis.NewScript(`
local burst = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
  tokens = burst
  ts = now
end

local elapsed = math.max(0, now - ts) / 1000
tokens = math.min(burst, tokens + elapsed * rate)

local allowed = 0
local retry = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  retry = math.ceil((1 - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], math.ceil(burst / rate * 1000) + 1000)
return {allowed, math.floor(tokens * 1000), retry}
`)

// Redis is a Limiter shared by every API instance.
type Redis struct {
	client *redis.Client
	prefix string
	bucket Bucket
}

func NewRedis(client *redis.Client, prefix string, b Bucket) *Redis {
	return &Redis{client: client, prefix: prefix, bucket: b}
}

func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	vals, err := tokenBucket.Run(ctx, r.client,
		[]string{r.prefix + ":" + key},
		r.bucket.Burst, r.bucket.Rate, time.Now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("run token bucket: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("token bucket returned %d values", len(vals))
	}
	return Result{
		Allowed:    vals[0] == 1,
		Remaining:  int(math.Floor(float64(vals[1]) / 1000)),
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}
