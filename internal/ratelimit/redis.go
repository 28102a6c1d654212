package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// hitScript increments the window counter, starting the window on the first
// hit, and refuses to count past the budget.
var hitScript = redis.NewScript(`
local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count >= tonumber(ARGV[1]) then
  return {count, redis.call("PTTL", KEYS[1]), 0}
end
count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {count, redis.call("PTTL", KEYS[1]), 1}
`)

// RedisStore keeps window counters in Redis so replicas share one budget.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore on top of client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisStore) Hit(ctx context.Context, key string, budget Budget, now time.Time) (Decision, error) {
	res, err := hitScript.Run(ctx, s.client, []string{s.prefix + key}, budget.MaxRequests, budget.Window.Milliseconds()).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}
	count, _ := res[0].(int64)
	ttl, _ := res[1].(int64)
	allowed, _ := res[2].(int64)
	if ttl < 0 {
		ttl = budget.Window.Milliseconds()
	}

	remaining := budget.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed == 1,
		Remaining: remaining,
		ResetAt:   now.Add(time.Duration(ttl) * time.Millisecond),
	}, nil
}

// Sweep is a no-op: Redis expires windows on its own.
func (s *RedisStore) Sweep(time.Time) int {
	return 0
}
