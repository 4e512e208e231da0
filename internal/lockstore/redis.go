package lockstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vexbus/booking-backend/internal/config"
)

// acquireScript sets the lock when free, or refreshes the TTL when the
// caller already owns it. Single script so there is no window between the
// ownership check and the expiry refresh.
var acquireScript = redis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX", "EX", ARGV[2]) then
	return 1
end
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
	return 1
end
return 0
`)

// releaseScript deletes the lock only when the caller still owns it, so a
// stale release cannot drop a lock that expired and was re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore implements Store on Redis using SET NX EX plus compare-owner
// Lua scripts.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg *config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Acquire takes or refreshes the seat lock for holderID.
func (s *RedisStore) Acquire(ctx context.Context, tripID int64, seat, holderID string, ttl time.Duration) (bool, error) {
	seconds := int64(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	ok, err := acquireScript.Run(ctx, s.client, []string{lockKey(tripID, seat)}, holderID, seconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to acquire seat lock: %w", err)
	}
	return ok == 1, nil
}

// Release removes the lock when holderID still owns it.
func (s *RedisStore) Release(ctx context.Context, tripID int64, seat, holderID string) (bool, error) {
	deleted, err := releaseScript.Run(ctx, s.client, []string{lockKey(tripID, seat)}, holderID).Int()
	if err != nil {
		return false, fmt.Errorf("failed to release seat lock: %w", err)
	}
	return deleted == 1, nil
}

// Owner returns the current holder of the seat lock.
func (s *RedisStore) Owner(ctx context.Context, tripID int64, seat string) (string, error) {
	holder, err := s.client.Get(ctx, lockKey(tripID, seat)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read seat lock owner: %w", err)
	}
	return holder, nil
}

// ActiveLocks scans the trip's key prefix and returns the locked seats.
func (s *RedisStore) ActiveLocks(ctx context.Context, tripID int64) ([]string, error) {
	seats := []string{}
	iter := s.client.Scan(ctx, 0, tripPattern(tripID), 100).Iterator()
	for iter.Next(ctx) {
		seats = append(seats, seatFromKey(tripID, iter.Val()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan seat locks: %w", err)
	}
	return seats, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
