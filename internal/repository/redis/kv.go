package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KeyValue implements repository.KeyValue using Redis.
type KeyValue struct {
	client redis.UniversalClient
	prefix string
}

// NewKeyValue creates a Redis-backed key/value store. Every key is prefixed
// with prefix so several devices or profiles can share one Redis.
func NewKeyValue(client redis.UniversalClient, prefix string) *KeyValue {
	return &KeyValue{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a value by key from Redis.
func (s *KeyValue) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// MultiGet reads all keys with a single MGET.
func (s *KeyValue) MultiGet(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	vals, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis multi get: %w", err)
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

// MultiSet writes all pairs inside one MULTI/EXEC transaction.
func (s *KeyValue) MultiSet(ctx context.Context, pairs map[string]string) error {
	if len(pairs) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range pairs {
			pipe.Set(ctx, s.prefix+k, v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis multi set: %w", err)
	}
	return nil
}

// MultiRemove deletes all keys with a single DEL.
func (s *KeyValue) MultiRemove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis multi remove: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *KeyValue) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
