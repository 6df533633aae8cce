package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adgenie/backend/internal/logger"
)

// Cache wraps the shared Redis client. It backs the access-token blacklist,
// the generation job queue, and progress pub/sub.
type Cache struct {
	client *redis.Client
	log    *logger.Logger
}

func New(redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log := logger.WithComponent("cache")
	log.Info(ctx, "connected to redis", map[string]any{"addr": opts.Addr})
	return &Cache{client: client, log: log}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying connection for the queue and pub/sub layers.
func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.log.Warn(ctx, "cache read failed", map[string]any{"key": key, "error": err.Error()})
		return "", false
	}
	return val, true
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}
