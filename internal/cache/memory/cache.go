package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hybrid-rag/backend/internal/cache"
)

// Cache is the in-process embedding cache used when Redis is not configured.
type Cache struct {
	cache *gocache.Cache
}

var _ cache.EmbeddingCache = (*Cache)(nil)

func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	return &Cache{cache: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *Cache) GetEmbedding(_ context.Context, key string) ([]float32, bool, error) {
	if x, found := c.cache.Get(key); found {
		return x.([]float32), true, nil
	}
	return nil, false, nil
}

func (c *Cache) SetEmbedding(_ context.Context, key string, embedding []float32, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	stored := make([]float32, len(embedding))
	copy(stored, embedding)
	c.cache.Set(key, stored, ttl)
	return nil
}

func (c *Cache) Len() int {
	return c.cache.ItemCount()
}
