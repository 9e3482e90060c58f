package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultResponseTTL = 30 * time.Minute

// ResponseCache remembers the reply sent for a webhook delivery so a retried
// delivery gets the same answer instead of being processed twice.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) error
}

// ResponseKey identifies one delivery: the same body for the same session.
func ResponseKey(sessionID string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// RedisResponseCache stores responses in redis with a TTL.
type RedisResponseCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisResponseCache(client *redis.Client, ttl time.Duration) *RedisResponseCache {
	if ttl <= 0 {
		ttl = defaultResponseTTL
	}
	return &RedisResponseCache{client: client, prefix: "praxis:webhook:", ttl: ttl}
}

func (c *RedisResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Failed to read cached webhook response", "error", err)
		}
		return nil, false
	}
	return data, true
}

func (c *RedisResponseCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache webhook response: %w", err)
	}
	return nil
}

type cachedResponse struct {
	value     []byte
	expiresAt time.Time
}

// MemoryResponseCache is the single-instance fallback used when no redis
// address is configured.
type MemoryResponseCache struct {
	ttl     time.Duration
	mutex   sync.Mutex
	entries map[string]cachedResponse
	now     func() time.Time
}

func NewMemoryResponseCache(ttl time.Duration) *MemoryResponseCache {
	if ttl <= 0 {
		ttl = defaultResponseTTL
	}
	return &MemoryResponseCache{
		ttl:     ttl,
		entries: make(map[string]cachedResponse),
		now:     time.Now,
	}
}

func (c *MemoryResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *MemoryResponseCache) Set(ctx context.Context, key string, value []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	// drop expired entries on write so the map stays bounded by the TTL window
	for k, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cachedResponse{value: value, expiresAt: now.Add(c.ttl)}
	return nil
}
