package bytecache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tilevista/go-deepzoom/tile"
)

// RedisCache stores tile bytes in redis with a TTL, for viewers sharing a
// warm cache across processes or hosts.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

var _ Cache = (*RedisCache)(nil)

func (c *RedisCache) keyFor(k tile.Key) string {
	return fmt.Sprintf("tile:%d:%d:%d", k.Level, k.Col, k.Row)
}

func (c *RedisCache) Get(k tile.Key) ([]byte, bool, error) {
	data, err := c.client.Get(context.Background(), c.keyFor(k)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}
	return data, true, nil
}

func (c *RedisCache) Set(k tile.Key, data []byte) error {
	if err := c.client.Set(context.Background(), c.keyFor(k), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
