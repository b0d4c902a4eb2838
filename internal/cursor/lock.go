package cursor

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker serializes concurrent continuations of the same cursor. Locking
// is best-effort and fails open: if the backend is unreachable, Acquire
// reports success so pagination keeps working without it.
type Locker interface {
	Acquire(ctx context.Context, cursorID string) (release func(), ok bool)
}

// NopLocker performs no locking. Used when Redis is not configured.
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string) (func(), bool) {
	return func() {}, true
}

const lockKeyPrefix = "discovery:cursor-lock:"

// RedisLocker takes a short-lived SET NX lock per cursor.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context, cursorID string) (func(), bool) {
	key := lockKeyPrefix + cursorID
	acquired, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		// Fail open: a broken lock backend must not block paging.
		l.logger.Warn("cursor lock unavailable, proceeding unlocked",
			slog.String("cursorId", cursorID),
			slog.String("error", err.Error()),
		)
		return func() {}, true
	}
	if !acquired {
		return func() {}, false
	}
	return func() {
		if err := l.client.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			l.logger.Warn("cursor lock release failed",
				slog.String("cursorId", cursorID),
				slog.String("error", err.Error()),
			)
		}
	}, true
}
