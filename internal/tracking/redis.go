package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Cache backed by Redis, for multi-node deployments
// where tracking snapshots must be shared across instances.
type RedisCache struct {
	client *redis.Client
	// retention is the physical key TTL. It is a multiple of the
	// freshness TTL so stale snapshots remain available for degraded
	// responses; freshness itself is judged by the reader.
	retention time.Duration
}

// RedisCacheConfig holds Redis connection settings.
type RedisCacheConfig struct {
	Addr      string
	Password  string
	DB        int
	Retention time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisCacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	retention := cfg.Retention
	if retention == 0 {
		retention = 24 * time.Hour
	}
	return &RedisCache{client: client, retention: retention}, nil
}

func trackingKey(awbNo string) string {
	return "tracking:snapshot:" + awbNo
}

func (c *RedisCache) Get(ctx context.Context, awbNo string) (*Snapshot, error) {
	data, err := c.client.Get(ctx, trackingKey(awbNo)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snapshot, nil
}

func (c *RedisCache) Put(ctx context.Context, snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := c.client.Set(ctx, trackingKey(snapshot.AWBNo), data, c.retention).Err(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
