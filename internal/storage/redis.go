package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aman-churiwal/quotagate/internal/ratelimit"
	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	client *redis.Client
}

func NewRedis(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisClient{client: client}, nil
}

func (r *RedisClient) Client() *redis.Client {
	return r.client
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Counters live in a hash: "v" holds the 4-byte count, "ver" the version.
// The swap runs as a script so the version check and the write are atomic.
var compareAndSwapScript = redis.NewScript(`
local ver = redis.call('HGET', KEYS[1], 'ver')
local expected = tonumber(ARGV[1])
if expected == 0 then
  if ver then
    return 0
  end
elseif (not ver) or tonumber(ver) ~= expected then
  return 0
end
if expected == 0 then
  -- seeded from the server clock so a recreated key does not repeat old versions
  local t = redis.call('TIME')
  redis.call('HSET', KEYS[1], 'ver', t[1] .. string.rep('0', 6 - #t[2]) .. t[2])
else
  redis.call('HINCRBY', KEYS[1], 'ver', 1)
end
redis.call('HSET', KEYS[1], 'v', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// RedisCounterStore shares counters between gateway replicas through Redis
type RedisCounterStore struct {
	client redis.UniversalClient
}

func NewRedisCounterStore(client redis.UniversalClient) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Get(ctx context.Context, key string) (int32, ratelimit.Version, error) {
	fields, err := s.client.HMGet(ctx, key, "v", "ver").Result()
	if err != nil {
		return 0, ratelimit.NoVersion, err
	}

	raw, _ := fields[0].(string)
	rawVersion, _ := fields[1].(string)
	if raw == "" || rawVersion == "" {
		return 0, ratelimit.NoVersion, nil
	}

	value, err := decodeCount([]byte(raw))
	if err != nil {
		return 0, ratelimit.NoVersion, fmt.Errorf("counter %q: %w", key, err)
	}

	version, err := strconv.ParseUint(rawVersion, 10, 64)
	if err != nil {
		return 0, ratelimit.NoVersion, fmt.Errorf("counter %q: bad version %q: %w", key, rawVersion, err)
	}

	return value, ratelimit.Version(version), nil
}

func (s *RedisCounterStore) CompareAndSwap(ctx context.Context, key string, value int32, expected ratelimit.Version, ttl time.Duration) error {
	swapped, err := compareAndSwapScript.Run(ctx, s.client, []string{key},
		strconv.FormatUint(uint64(expected), 10),
		encodeCount(value),
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return err
	}

	if swapped == 0 {
		return ratelimit.ErrVersionConflict
	}
	return nil
}

func (s *RedisCounterStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
