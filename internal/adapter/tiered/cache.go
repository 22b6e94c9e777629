// Package tiered combines an in-process L1 cache with a shared L2 cache.
package tiered

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Strob0t/TaskForge/internal/port/cache"
)

// Cache reads through L1 then L2 and writes to both. L2 is remote, so its
// read errors degrade to misses instead of failing the caller. A nil L2
// turns the cache into a plain L1.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
}

// New creates a tiered cache. l1Expire bounds how long entries backfilled
// from L2 stay in L1.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Get checks L1, then L2, backfilling L1 on an L2 hit.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found || c.l2 == nil {
		return val, found, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "l2 cache read failed", "key", key, "error", err)
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}
	if err := c.l1.Set(ctx, key, val, c.l1Expire); err != nil {
		slog.DebugContext(ctx, "l1 backfill failed", "key", key, "error", err)
	}
	return val, true, nil
}

// Set writes L1 then L2. The L1 entry lives at most l1Expire.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l1TTL := ttl
	if c.l1Expire > 0 && (l1TTL <= 0 || l1TTL > c.l1Expire) {
		l1TTL = c.l1Expire
	}
	if err := c.l1.Set(ctx, key, value, l1TTL); err != nil {
		return err
	}
	if c.l2 == nil {
		return nil
	}
	return c.l2.Set(ctx, key, value, ttl)
}

// Delete removes key from both levels, attempting L2 even if L1 fails.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.l1.Delete(ctx, key)
	if c.l2 != nil {
		err = errors.Join(err, c.l2.Delete(ctx, key))
	}
	return err
}
