package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/support-chat/pkg/config"
	"github.com/richxcame/support-chat/pkg/tracing"
)

// Redis is a Store backed by a Redis server, for deployments where several
// devices or kiosk sessions share state.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return client, nil
}

// NewRedis wraps client. A positive ttl is applied to every write.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := tracing.TraceStoreOp(ctx, tracerName, "redis", "get", key, IsNotFound, func(ctx context.Context) error {
		result, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get %s: %w", key, err)
		}
		value = result
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return tracing.TraceStoreOp(ctx, tracerName, "redis", "set", key, nil, func(ctx context.Context) error {
		if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
			return fmt.Errorf("redis set %s: %w", key, err)
		}
		return nil
	})
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return tracing.TraceStoreOp(ctx, tracerName, "redis", "del", key, nil, func(ctx context.Context) error {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis del %s: %w", key, err)
		}
		return nil
	})
}

func (r *Redis) Close() error {
	return r.client.Close()
}
