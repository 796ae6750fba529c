package throttle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "clinic:login:"

// incrementScript bumps the attempt count and stamps the lockout when the
// count reaches the threshold. A counter whose lockout has passed starts
// over. Unlocked counters carry no TTL; a locked counter expires with its
// lockout.
//
// KEYS[1] counter key
// ARGV[1] threshold, ARGV[2] locked_until (unix ms), ARGV[3] now (unix ms),
// ARGV[4] lockout (ms)
var incrementScript = redis.NewScript(`
local locked = tonumber(redis.call('HGET', KEYS[1], 'locked_until') or '0')
if locked > 0 and locked <= tonumber(ARGV[3]) then
  redis.call('DEL', KEYS[1])
  locked = 0
end
local n = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
redis.call('HSET', KEYS[1], 'last_failure', ARGV[3])
if n == tonumber(ARGV[1]) then
  redis.call('HSET', KEYS[1], 'locked_until', ARGV[2])
  redis.call('PEXPIRE', KEYS[1], ARGV[4])
  locked = tonumber(ARGV[2])
end
return {n, locked}
`)

// RedisStore shares counters across instances.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: defaultRedisPrefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Get(ctx context.Context, key string) (Counter, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return Counter{}, false, fmt.Errorf("throttle: get %s: %w", key, err)
	}
	if len(fields) == 0 {
		return Counter{}, false, nil
	}
	var c Counter
	if v, ok := fields["attempts"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Counter{}, false, fmt.Errorf("throttle: parse attempts: %w", err)
		}
		c.Attempts = n
	}
	c.LockedUntil, err = parseMillis(fields["locked_until"])
	if err != nil {
		return Counter{}, false, err
	}
	c.LastFailure, err = parseMillis(fields["last_failure"])
	if err != nil {
		return Counter{}, false, err
	}
	return c, true, nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, threshold int, lockout time.Duration, now time.Time) (Counter, error) {
	lockedUntil := now.Add(lockout)
	res, err := incrementScript.Run(ctx, s.client, []string{s.key(key)},
		threshold, lockedUntil.UnixMilli(), now.UnixMilli(), lockout.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Counter{}, fmt.Errorf("throttle: increment %s: %w", key, err)
	}
	if len(res) != 2 {
		return Counter{}, fmt.Errorf("throttle: increment %s: unexpected reply %v", key, res)
	}
	c := Counter{Attempts: int(res[0]), LastFailure: time.UnixMilli(now.UnixMilli())}
	if res[1] > 0 {
		c.LockedUntil = time.UnixMilli(res[1])
	}
	return c, nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("throttle: clear %s: %w", key, err)
	}
	return nil
}

// Sweep is a no-op: a locked key's TTL ends with its lockout, and unlocked
// keys never expire.
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func parseMillis(v string) (time.Time, error) {
	if v == "" || v == "0" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("throttle: parse timestamp %q: %w", v, err)
	}
	return time.UnixMilli(ms), nil
}

// Ping checks the connection. It satisfies db.Check for health reporting.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
