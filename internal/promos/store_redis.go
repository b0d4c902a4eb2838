package promos

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "discovery:promos:"

// RedisStore reads promotion/event records from Redis, one JSON-encoded
// list per place id.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) ByPlaceIDs(ctx context.Context, placeIDs []string) (map[string][]Record, error) {
	if len(placeIDs) == 0 {
		return map[string][]Record{}, nil
	}
	keys := make([]string, len(placeIDs))
	for i, id := range placeIDs {
		keys[i] = redisKeyPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("promos mget: %w", err)
	}
	out := make(map[string][]Record, len(placeIDs))
	for i, value := range values {
		if value == nil {
			continue
		}
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var records []Record
		if err := json.Unmarshal([]byte(raw), &records); err != nil {
			return nil, fmt.Errorf("promos decode %s: %w", placeIDs[i], err)
		}
		out[placeIDs[i]] = records
	}
	return out, nil
}

// Put replaces the record list for one place. Used by ingestion tooling
// and tests; the discovery path itself only reads.
func (s *RedisStore) Put(ctx context.Context, placeID string, records []Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+placeID, data, 0).Err()
}
