package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// OwnerCache memoizes per-owner read models in process. Values are stored as
// JSON so callers never share mutable state with the cache.
type OwnerCache struct {
	lru *LRUCache[[]byte]

	mu   sync.Mutex
	gens map[int64]int64
}

func NewOwnerCache(maxSize int, ttl time.Duration) *OwnerCache {
	return &OwnerCache{lru: NewLRUCache[[]byte](maxSize, ttl), gens: make(map[int64]int64)}
}

// LRU exposes the backing cache so a Manager can sweep it.
func (c *OwnerCache) LRU() *LRUCache[[]byte] {
	return c.lru
}

func (c *OwnerCache) generation(ownerID int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[ownerID]
}

func genPrefix(ownerID, gen int64) string {
	return fmt.Sprintf("%d|%d|", ownerID, gen)
}

func (c *OwnerCache) Get(ctx context.Context, ownerID int64, key string, dst any) (int64, bool) {
	gen := c.generation(ownerID)
	k := genPrefix(ownerID, gen) + key
	raw, ok := c.lru.Get(k)
	if !ok {
		return gen, false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.WarnContext(ctx, "Dropping undecodable cache entry", "owner_id", ownerID, "key", key, "error", err)
		c.lru.Delete(k)
		return gen, false
	}
	return gen, true
}

// Set stores v unless the owner was invalidated after gen was observed.
func (c *OwnerCache) Set(ctx context.Context, ownerID, gen int64, key string, v any) {
	if gen != c.generation(ownerID) {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		slog.WarnContext(ctx, "Value not cacheable", "owner_id", ownerID, "key", key, "error", err)
		return
	}
	c.lru.Set(genPrefix(ownerID, gen)+key, raw)
}

// Invalidate moves the owner to a new generation and drops the old entries.
func (c *OwnerCache) Invalidate(ctx context.Context, ownerID int64) {
	c.mu.Lock()
	old := c.gens[ownerID]
	c.gens[ownerID] = old + 1
	c.mu.Unlock()

	if n := c.lru.DeletePrefix(genPrefix(ownerID, old)); n > 0 {
		slog.DebugContext(ctx, "Cache invalidated", "owner_id", ownerID, "entries", n)
	}
}
