package query

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	pkgredis "github.com/Adithya-Monish-Kumar-K/newssearch/pkg/redis"
)

const keyPrefix = "newssearch:"

// KV is the subset of the redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Cache stores answers under the crawl run ID, so a new crawl never sees
// answers computed from an older index. Concurrent misses for the same word
// are computed once.
type Cache struct {
	client KV
	runID  string
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func NewCache(client KV, runID string, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		runID:  runID,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache", "run_id", runID),
	}
}

// Get returns the cached answer for word. Redis failures count as misses.
func (c *Cache) Get(ctx context.Context, word string, limit int) (*Answer, bool) {
	key := c.buildKey(word, limit)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var ans Answer
	if err := json.Unmarshal(data, &ans); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &ans, true
}

func (c *Cache) Set(ctx context.Context, word string, limit int, ans *Answer) {
	key := c.buildKey(word, limit)
	data, err := json.Marshal(ans)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached answer or computes and stores it. The
// boolean reports a cache hit.
func (c *Cache) GetOrCompute(ctx context.Context, word string, limit int, compute func() (*Answer, error)) (*Answer, bool, error) {
	if ans, ok := c.Get(ctx, word, limit); ok {
		return ans, true, nil
	}
	key := c.buildKey(word, limit)
	val, err, _ := c.group.Do(key, func() (any, error) {
		ans, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, word, limit, ans)
		return ans, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Answer), false, nil
}

// Invalidate drops every answer cached for this run.
func (c *Cache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, c.prefix()+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) prefix() string {
	return keyPrefix + c.runID + ":"
}

func (c *Cache) buildKey(word string, limit int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:limit=%d", word, limit)))
	return fmt.Sprintf("%s%x", c.prefix(), hash[:16])
}
