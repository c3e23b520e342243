package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists billing records in Redis. Values never expire; the
// current bill and catalog survive restarts the way the browser original
// survived reloads.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.client == nil {
		return "", false, nil
	}
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}
