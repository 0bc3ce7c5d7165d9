package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisChecker verifies Redis connectivity for the readiness endpoint
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker opens a health-check connection to Redis
func NewRedisChecker(address, password string, db int) (*RedisChecker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisChecker{client: client}, nil
}

// Name returns the dependency name
func (c *RedisChecker) Name() string {
	return "redis"
}

// Check verifies Redis connectivity
func (c *RedisChecker) Check(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisChecker) Close() error {
	return c.client.Close()
}
