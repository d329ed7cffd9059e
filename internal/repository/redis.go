package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookbite/internal/config"
	"bookbite/internal/models"

	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "bookbite:snapshot:"

// RedisSnapshotCache shares reservation snapshots between API instances.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	return &RedisSnapshotCache{
		client: client,
		ttl:    ttl,
	}
}

func redisSnapshotKey(tableID int64, date string) string {
	return snapshotKeyPrefix + snapshotKey(tableID, date)
}

func (c *RedisSnapshotCache) GetSnapshot(ctx context.Context, tableID int64, date string) ([]models.Reservation, bool, error) {
	if c.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := c.client.Get(ctx, redisSnapshotKey(tableID, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get snapshot from redis: %w", err)
	}

	var list []models.Reservation
	if err := json.Unmarshal(val, &list); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return list, true, nil
}

func (c *RedisSnapshotCache) SetSnapshot(ctx context.Context, tableID int64, date string, list []models.Reservation) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if list == nil {
		list = []models.Reservation{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, redisSnapshotKey(tableID, date), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot in redis: %w", err)
	}
	return nil
}

func (c *RedisSnapshotCache) Invalidate(ctx context.Context, tableID int64, date string) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := c.client.Del(ctx, redisSnapshotKey(tableID, date)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot from redis: %w", err)
	}
	return nil
}

func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
