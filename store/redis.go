package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sicko7947/hrflow"
)

// RedisStore implements hrflow.Store on Redis strings and sets
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromAddr dials a single Redis node
func NewRedisStoreFromAddr(addr, password string, db int) *RedisStore {
	return NewRedisStore(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

var _ hrflow.Store = (*RedisStore)(nil)

// Value operations

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, hrflow.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return n > 0, nil
}

// Set operations

func (s *RedisStore) AddMember(ctx context.Context, key, member string) error {
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("failed to add member to %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) RemoveMember(ctx context.Context, key, member string) error {
	if err := s.client.SRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("failed to remove member from %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Members(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get members of %s: %w", key, err)
	}
	sort.Strings(members)
	return members, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
