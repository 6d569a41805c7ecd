package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/faro-networks/faro/pkg/util"
)

// acquireScript claims the lock atomically. Returns 1 on success, 0 when
// another holder owns it.
var acquireScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
	return 0
end
redis.call("HSET", key, "holder", ARGV[1], "acquired", ARGV[2])
redis.call("EXPIRE", key, tonumber(ARGV[3]))
return 1
`)

// releaseScript drops the lock only when the holder matches. Returns 1 on
// success, 0 on holder mismatch, -1 when the key already expired.
var releaseScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
	return -1
end
if redis.call("HGET", key, "holder") ~= ARGV[1] then
	return 0
end
redis.call("DEL", key)
return 1
`)

// RedisLocker coordinates device access across engine instances through
// advisory locks in redis. The TTL bounds how long a crashed holder can
// block a device.
type RedisLocker struct {
	client *redis.Client
	holder string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker connects a locker to client. holder names this engine
// instance in the lock record; it must be unique across instances.
func NewRedisLocker(client *redis.Client, holder string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLocker{client: client, holder: holder, ttl: ttl, retry: 250 * time.Millisecond}
}

func lockKey(device string) string {
	return fmt.Sprintf("FARO_LOCK|%s", device)
}

// Acquire polls until the device lock is claimed or ctx is done. A lock
// held by another instance surfaces as ErrDeviceLocked only when ctx
// expires first; until then Acquire keeps retrying.
func (r *RedisLocker) Acquire(ctx context.Context, device string) (func(), error) {
	key := lockKey(device)
	ttlSeconds := fmt.Sprintf("%d", int(r.ttl.Seconds()))

	for {
		now := time.Now().UTC().Format(time.RFC3339)
		result, err := acquireScript.Run(ctx, r.client, []string{key}, r.holder, now, ttlSeconds).Int()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock for %s: %w", device, err)
		}
		if result == 1 {
			return func() { r.release(device) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock on %s: %w", device, util.ErrDeviceLocked)
		case <-time.After(r.retry):
		}
	}
}

func (r *RedisLocker) release(device string) {
	// Release runs under its own deadline; the caller's ctx is often
	// already canceled by the time the deferred release fires.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := releaseScript.Run(ctx, r.client, []string{lockKey(device)}, r.holder).Int()
	if err != nil {
		util.WithDevice(device).Warnf("Failed to release device lock: %v", err)
		return
	}
	if result == 0 {
		util.WithDevice(device).Warnf("Device lock holder mismatch on release")
	}
}
