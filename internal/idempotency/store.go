package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:"

// Store makes a "create or detect duplicate" decision atomically for a key.
// Among N concurrent TryCreate calls with the same key, exactly one observes
// true within the TTL window.
type Store interface {
	// TryCreate records the key if unseen and reports whether this caller
	// won the window. The winning call is the one whose business action
	// should proceed.
	TryCreate(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Exists is a pure lookup without the create side effect
	Exists(ctx context.Context, key string) (bool, error)

	Close() error
}

// RedisStore implements Store against Redis using a single SET NX, so two
// concurrent callers can never both observe "not exists".
type RedisStore struct {
	client   *redis.Client
	failOpen bool
}

// NewRedisStore creates a redis-backed store. failOpen selects the degraded
// policy when redis is unreachable: true lets processing proceed (duplicates
// possible), false rejects it (availability sacrificed).
func NewRedisStore(address, password string, db int, failOpen bool) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, failOpen: failOpen}, nil
}

// TryCreate atomically records the key with its TTL
func (s *RedisStore) TryCreate(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	created, err := s.client.SetNX(ctx, keyPrefix+key, "1", ttl).Result()
	if err != nil {
		slog.Warn("idempotency store unreachable",
			"key", key,
			"fail_open", s.failOpen,
			"error", err,
		)
		if s.failOpen {
			return true, nil
		}
		return false, fmt.Errorf("idempotency store unavailable: %w", err)
	}
	return created, nil
}

// Exists reports whether the key is within an unexpired window
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		slog.Warn("idempotency store unreachable", "key", key, "error", err)
		if s.failOpen {
			return false, nil
		}
		return false, fmt.Errorf("idempotency store unavailable: %w", err)
	}
	return n > 0, nil
}

// Close closes the redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
