package limiter

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// hitScript increments the key, arms the expiry on the first hit and
// returns the count with the remaining TTL in milliseconds.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {n, ttl}
`)

// Redis is a Store backed by a shared Redis instance.
type Redis struct {
	client redis.Scripter
	prefix string
}

// NewRedis constructs a Redis-backed store. Keys are stored as prefix + sha256(key).
func NewRedis(client redis.Scripter, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Hit implements Store.
func (r *Redis) Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	k := r.prefix + hex.EncodeToString(HashKey(key))
	res, err := hitScript.Run(ctx, r.client, []string{k}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("limiter: unexpected script reply %v", res)
	}
	if int(res[0]) <= limit {
		return Decision{Allowed: true}, nil
	}
	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	return Decision{RetryAfter: ttl}, nil
}
