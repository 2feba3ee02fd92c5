package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long undrained notifications survive in Redis
const DefaultTTL = 10 * time.Minute

// RedisStore keeps notifications in a Redis list per session so any API
// instance can drain them
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
	prefix string
	ttl    time.Duration
	max    int64
}

// NewRedisStore connects to redisURL and creates a store
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		now:    time.Now,
		prefix: "notifications:",
		ttl:    ttl,
		max:    DefaultMaxPerSession,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Notify appends n to the session's list and refreshes its TTL
func (s *RedisStore) Notify(ctx context.Context, sessionID string, n Notification) error {
	data, err := json.Marshal(stamp(n, s.now()))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	key := s.key(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -s.max, -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}
	return nil
}

// Drain atomically reads and deletes the session's list
func (s *RedisStore) Drain(ctx context.Context, sessionID string) ([]Notification, error) {
	key := s.key(sessionID)

	pipe := s.client.TxPipeline()
	items := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("drain notifications: %w", err)
	}

	result := make([]Notification, 0, len(items.Val()))
	for _, raw := range items.Val() {
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, fmt.Errorf("unmarshal notification: %w", err)
		}
		result = append(result, n)
	}
	return result, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
