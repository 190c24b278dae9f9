package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "checkout:idempotency:"
	pendingValue = "pending"
)

// RedisStore shares claims between service instances. A claim is a SET NX of
// a pending marker that Complete overwrites with the order id.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Claim(ctx context.Context, key string) (Claim, error) {
	acquired, err := s.client.SetNX(ctx, keyPrefix+key, pendingValue, s.ttl).Result()
	if err != nil {
		return Claim{}, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if acquired {
		return Claim{Acquired: true}, nil
	}

	value, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired or abandoned between the two calls; report it as busy
		// and let the client retry.
		return Claim{}, nil
	}
	if err != nil {
		return Claim{}, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if value == pendingValue {
		return Claim{}, nil
	}
	return Claim{OrderID: value}, nil
}

func (s *RedisStore) Complete(ctx context.Context, key, orderID string) error {
	if err := s.client.Set(ctx, keyPrefix+key, orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) Abandon(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to abandon idempotency key: %w", err)
	}
	return nil
}
