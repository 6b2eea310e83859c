package channel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TestCache remembers recent successful channel tests so that repeated test
// clicks within the idempotency window skip the gateway round-trip. The key
// includes a credentials digest: editing credentials invalidates the entry.
type TestCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTestCache(client *redis.Client, ttl time.Duration) *TestCache {
	return &TestCache{client: client, ttl: ttl}
}

func (c *TestCache) key(channelID uuid.UUID, credentials string) string {
	digest := sha256.Sum256([]byte(credentials))
	return fmt.Sprintf("channel:test:%s:%s", channelID, hex.EncodeToString(digest[:8]))
}

func (c *TestCache) Hit(ctx context.Context, channelID uuid.UUID, credentials string) bool {
	if c == nil || c.client == nil {
		return false
	}
	err := c.client.Get(ctx, c.key(channelID, credentials)).Err()
	return err == nil
}

func (c *TestCache) Store(ctx context.Context, channelID uuid.UUID, credentials string) error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Set(ctx, c.key(channelID, credentials), "ok", c.ttl).Err()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
