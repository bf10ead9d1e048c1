package queue

import (
	"context"
	"fmt"
	"time"

	"notification-relay/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a Redis-list-backed Queue, shared across processes.
type RedisQueue struct {
	client *redis.Client
	name   string
}

// NewRedisClient builds a redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// NewRedisQueue wraps an existing redis client as a Queue.
func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	return &RedisQueue{client: client, name: name}
}

func (q *RedisQueue) Push(ctx context.Context, taskID string) error {
	if err := q.client.LPush(ctx, q.name, taskID).Err(); err != nil {
		return fmt.Errorf("redis push: %w", err)
	}
	return nil
}

func (q *RedisQueue) PopBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.client.BRPop(ctx, timeout, q.name).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis pop: %w", err)
	}
	// BRPop returns [key, value].
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

func (q *RedisQueue) Size(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("redis size: %w", err)
	}
	return int(n), nil
}

// Ping verifies connectivity to Redis.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}
