package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yield-scanner/internal/models"
)

// CatalogCache serves protocol and network name lookups used by read-path
// enrichment, fronting the catalog with an optional redis cache. Protocols and
// networks are reference data, so entries are cached with a TTL and never
// invalidated explicitly. A nil redis cache degrades to direct catalog reads.
type CatalogCache struct {
	catalog *CatalogRepository
	redis   *RedisCache
	ttl     time.Duration
}

// NewCatalogCache creates an enrichment cache over the catalog. redis may be nil.
func NewCatalogCache(catalog *CatalogRepository, redis *RedisCache, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		catalog: catalog,
		redis:   redis,
		ttl:     ttl,
	}
}

// protocolKey formats the cache key for a protocol ref.
// Format: protocol:<id>
func protocolKey(id int64) string {
	return fmt.Sprintf("protocol:%d", id)
}

// networkKey formats the cache key for a network ref.
// Format: network:<id>
func networkKey(id int64) string {
	return fmt.Sprintf("network:%d", id)
}

// ProtocolRef resolves an id/name stub for a protocol.
func (c *CatalogCache) ProtocolRef(ctx context.Context, id int64) (*models.EntityRef, bool) {
	if ref, ok := c.cachedRef(ctx, protocolKey(id)); ok {
		return ref, true
	}

	p, ok := c.catalog.Protocol(id)
	if !ok {
		return nil, false
	}
	ref := &models.EntityRef{ID: p.ID, Name: p.Name}
	c.storeRef(ctx, protocolKey(id), ref)
	return ref, true
}

// NetworkRef resolves an id/name stub for a network.
func (c *CatalogCache) NetworkRef(ctx context.Context, id int64) (*models.EntityRef, bool) {
	if ref, ok := c.cachedRef(ctx, networkKey(id)); ok {
		return ref, true
	}

	n, ok := c.catalog.Network(id)
	if !ok {
		return nil, false
	}
	ref := &models.EntityRef{ID: n.ID, Name: n.Name}
	c.storeRef(ctx, networkKey(id), ref)
	return ref, true
}

// cachedRef reads a ref from redis. Cache errors are treated as misses; the
// catalog is always authoritative.
func (c *CatalogCache) cachedRef(ctx context.Context, key string) (*models.EntityRef, bool) {
	if c.redis == nil {
		return nil, false
	}

	data, found, err := c.redis.Get(ctx, key)
	if err != nil || !found {
		return nil, false
	}

	var ref models.EntityRef
	if err := json.Unmarshal([]byte(data), &ref); err != nil {
		return nil, false
	}
	return &ref, true
}

// storeRef writes a ref to redis, best effort.
func (c *CatalogCache) storeRef(ctx context.Context, key string, ref *models.EntityRef) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(ref)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl)
}
