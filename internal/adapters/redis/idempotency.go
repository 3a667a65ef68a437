// Package redis provides the ingress-layer idempotency cache: a
// dedup guard against a client retrying /submit_transaction with the
// same transaction hash while the Sequencer is still processing it.
// This is deliberately the only use of Redis in the sequencer — it is
// never used to store account state, which stays exclusively in the
// State Store and the Account Loader per spec.md's no-persistence
// non-goal.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/based-rollup/sequencer/internal/mlog"
)

const keyPrefix = "rollup:submitted:"

// Connection mirrors the teacher's common/mredis RedisConnection
// singleton pattern.
type Connection struct {
	ConnectionStringSource string
	Logger                 mlog.Logger

	client    *redis.Client
	connected bool
}

// Connect dials redis and pings it.
func (c *Connection) Connect(ctx context.Context) error {
	opts, err := redis.ParseURL(c.ConnectionStringSource)
	if err != nil {
		return fmt.Errorf("redis: parse connection string: %w", err)
	}

	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}

	c.client = client
	c.connected = true

	c.Logger.Info("redis: connected")

	return nil
}

// GetClient returns the open client, connecting lazily if necessary.
func (c *Connection) GetClient(ctx context.Context) (*redis.Client, error) {
	if !c.connected {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.client, nil
}

// IdempotencyCache deduplicates /submit_transaction calls for the same
// transaction hash within ttl.
type IdempotencyCache struct {
	conn *Connection
	ttl  time.Duration
}

// NewIdempotencyCache wraps conn with a fixed time-to-live.
func NewIdempotencyCache(conn *Connection, ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{conn: conn, ttl: ttl}
}

// SeenBefore atomically records hashHex as submitted and reports whether
// it had already been recorded within the TTL window.
func (c *IdempotencyCache) SeenBefore(ctx context.Context, hashHex string) (bool, error) {
	client, err := c.conn.GetClient(ctx)
	if err != nil {
		return false, err
	}

	ok, err := client.SetNX(ctx, keyPrefix+hashHex, 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: setnx: %w", err)
	}

	return !ok, nil
}
