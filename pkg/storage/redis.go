package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and verifies the connection before
// returning. The same client is shared by the session store and the login
// rate limiter.
func NewRedisClient(config Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB >= 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
