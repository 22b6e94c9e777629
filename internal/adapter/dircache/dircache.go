// Package dircache caches directory lookups in the tiered cache. Concurrent
// misses for one key share a single backend read.
package dircache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	dir "github.com/Strob0t/TaskForge/internal/domain/directory"
	"github.com/Strob0t/TaskForge/internal/port/cache"
	"github.com/Strob0t/TaskForge/internal/port/directory"
)

const keyPrefix = "dir"

// Directory wraps a directory.Directory with a read-through cache. Only
// found records are cached; misses always reach the backend.
type Directory struct {
	next  directory.Directory
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

var _ directory.Directory = (*Directory)(nil)

// New wraps next. ttl bounds how stale a cached record may be.
func New(next directory.Directory, c cache.Cache, ttl time.Duration) *Directory {
	return &Directory{next: next, cache: c, ttl: ttl}
}

func (d *Directory) GetTenant(ctx context.Context, id string) (*dir.Tenant, error) {
	return lookup(ctx, d, Key("tenant", id, id), func(ctx context.Context) (*dir.Tenant, error) {
		return d.next.GetTenant(ctx, id)
	})
}

func (d *Directory) GetCostCenter(ctx context.Context, tenantID, id string) (*dir.CostCenter, error) {
	return lookup(ctx, d, Key("cost_center", tenantID, id), func(ctx context.Context) (*dir.CostCenter, error) {
		return d.next.GetCostCenter(ctx, tenantID, id)
	})
}

func (d *Directory) GetTaskType(ctx context.Context, tenantID, id string) (*dir.TaskType, error) {
	return lookup(ctx, d, Key("task_type", tenantID, id), func(ctx context.Context) (*dir.TaskType, error) {
		return d.next.GetTaskType(ctx, tenantID, id)
	})
}

func (d *Directory) GetEmployee(ctx context.Context, tenantID, id string) (*dir.Employee, error) {
	return lookup(ctx, d, Key("employee", tenantID, id), func(ctx context.Context) (*dir.Employee, error) {
		return d.next.GetEmployee(ctx, tenantID, id)
	})
}

// Invalidate drops one cached record, e.g. after a directory import.
func (d *Directory) Invalidate(ctx context.Context, kind, tenantID, id string) error {
	return d.cache.Delete(ctx, Key(kind, tenantID, id))
}

// Key returns the cache key of a directory record.
func Key(kind, tenantID, id string) string {
	return cache.Key(keyPrefix, tenantID, kind, id)
}

func lookup[T any](ctx context.Context, d *Directory, key string, load func(context.Context) (*T, error)) (*T, error) {
	var cached T
	if ok, err := cache.GetJSON(ctx, d.cache, key, &cached); err == nil && ok {
		return &cached, nil
	}

	v, err, _ := d.group.Do(key, func() (any, error) {
		rec, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := cache.SetJSON(ctx, d.cache, key, rec, d.ttl); err != nil {
			return nil, fmt.Errorf("cache %s: %w", key, err)
		}
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	rec := *v.(*T)
	return &rec, nil
}
