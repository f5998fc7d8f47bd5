package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SettlementCache implements ports.SettlementCache using Redis. It is
// the fast-path dedup for repeated reconciliation of one order id; the
// database correlation key remains the source of truth.
type SettlementCache struct {
	client *goredis.Client
	prefix string
}

// NewSettlementCache creates a new Redis-backed settlement cache.
func NewSettlementCache(client *goredis.Client) *SettlementCache {
	return &SettlementCache{
		client: client,
		prefix: "settlement:",
	}
}

// Get retrieves a cached reconciliation result by order id.
// Returns nil, nil if the key does not exist.
func (c *SettlementCache) Get(ctx context.Context, orderID string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+orderID).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis settlement get: %w", err)
	}
	return val, nil
}

// Set stores a reconciliation result with TTL.
func (c *SettlementCache) Set(ctx context.Context, orderID string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+orderID, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis settlement set: %w", err)
	}
	return nil
}
