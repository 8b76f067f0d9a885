package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"traffic-light-bot/internal/catalog"
)

// CatalogLoader fetches catalog content from a backing store (e.g. Postgres).
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, id string) (*catalog.Catalog, error)
}

// CatalogCache keeps a JSON copy of a catalog in Redis and falls back to the loader on a miss.
// Concurrent misses for the same id share one load.
type CatalogCache struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewCatalogCache(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, loader: loader, ttl: ttl}
}

func (c *CatalogCache) LoadCatalog(ctx context.Context, id string) (*catalog.Catalog, error) {
	if cat, ok := c.cached(ctx, id); ok {
		return cat, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// another caller may have filled the cache meanwhile
		if cat, ok := c.cached(ctx, id); ok {
			return cat, nil
		}
		cat, err := c.loader.LoadCatalog(ctx, id)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(cat)
		if err != nil {
			return nil, fmt.Errorf("marshal catalog: %w", err)
		}
		_ = c.client.Set(ctx, c.key(id), raw, c.ttlWithJitter()).Err()
		return cat, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*catalog.Catalog), nil
}

// Invalidate drops the cached copy so the next load hits the backing store.
func (c *CatalogCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}

func (c *CatalogCache) cached(ctx context.Context, id string) (*catalog.Catalog, bool) {
	// redis.Nil and connection errors both count as a miss
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var cat catalog.Catalog
	if err := json.Unmarshal(raw, &cat); err != nil {
		return nil, false
	}
	if err := cat.Normalize(); err != nil {
		return nil, false
	}
	return &cat, true
}

func (c *CatalogCache) key(id string) string {
	return "quizbot:catalog:" + id
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
