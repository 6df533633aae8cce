package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "blacklist:"

// TokenBlacklist revokes access tokens before their natural expiry. Entries
// are keyed by token hash and expire with the token, so the set stays small.
type TokenBlacklist struct {
	client *redis.Client
}

func NewTokenBlacklist(c *Cache) *TokenBlacklist {
	return &TokenBlacklist{client: c.client}
}

func (b *TokenBlacklist) Revoke(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, blacklistPrefix+tokenHash, "1", ttl).Err()
}

func (b *TokenBlacklist) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	_, err := b.client.Get(ctx, blacklistPrefix+tokenHash).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
