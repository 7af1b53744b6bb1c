// Package cache provides an optional Redis-backed pre-cache in front of the
// Context Assembler: a completed mega-context string is stored keyed by its
// spec's content hash so that an identical Assemble call (same task state,
// same priority order) within the TTL window skips re-assembly entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a redis client scoped to one key prefix so multiple taskgraph
// deployments can share a Redis instance without key collisions.
type Cache struct {
	client *redis.Client
	prefix string
}

// New builds a Cache from a redis connection string (e.g. "localhost:6379").
func New(addr, password string, db int, prefix string) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		prefix: prefix,
	}
}

// Key derives a stable cache key from the task id and a caller-computed
// fingerprint of the inputs that influenced assembly (e.g. a hash of the
// CWC, the latest key finding id, and the chat history length).
func Key(taskID, fingerprint string) string {
	sum := sha256.Sum256([]byte(taskID + "|" + fingerprint))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached context string, or ("", false, nil) on a clean miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("contextassembler/cache: get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores the assembled context string with the given TTL. A TTL of zero
// means the entry never expires on its own.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("contextassembler/cache: set %s: %w", key, err)
	}
	return nil
}

// Invalidate removes one cached entry. The orchestrator does not call it;
// its keys change whenever the assembled inputs change.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("contextassembler/cache: del %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
