package cursor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"placefinder/discoveryservice/internal/domain"
)

const redisKeyPrefix = "discovery:cursor:"

// RedisStore persists search state as JSON in Redis with a TTL. The TTL
// is refreshed on every Put, so an actively paged cursor stays alive.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, cursorID string) (domain.SearchState, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+cursorID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SearchState{}, ErrNotFound
	}
	if err != nil {
		return domain.SearchState{}, fmt.Errorf("cursor get: %w", err)
	}
	var state domain.SearchState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SearchState{}, fmt.Errorf("cursor decode: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Put(ctx context.Context, state domain.SearchState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("cursor encode: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+state.CursorID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("cursor put: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, cursorID string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+cursorID).Err(); err != nil {
		return fmt.Errorf("cursor delete: %w", err)
	}
	return nil
}
