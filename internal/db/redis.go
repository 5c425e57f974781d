package db

import (
	"context"
	"fmt"
	"time"

	"backend-scampr/internal/config"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 3 * time.Second

var pingRedisFn = func(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// ConnectRedis returns a client for cfg.RedisAddr, or nil when no address is
// configured. An unreachable server is reported as an error and the client is
// closed, leaving the stream hub on local delivery.
func ConnectRedis(cfg config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := pingRedisFn(ctx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}
