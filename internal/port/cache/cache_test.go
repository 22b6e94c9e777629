package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/TaskForge/internal/port/cache"
)

type memCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemCache() *memCache { return &memCache{m: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

type costCenter struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newMemCache()

	key := cache.Key("dir", "tenant-1", "cc", "cc-1")
	if key != "dir:tenant-1:cc:cc-1" {
		t.Fatalf("unexpected key %q", key)
	}
	if err := cache.SetJSON(ctx, c, key, costCenter{ID: "cc-1", Code: "OPS"}, time.Minute); err != nil {
		t.Fatal(err)
	}

	var got costCenter
	ok, err := cache.GetJSON(ctx, c, key, &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Code != "OPS" {
		t.Fatalf("expected OPS, got %+v", got)
	}
}

func TestGetJSONMiss(t *testing.T) {
	var got costCenter
	ok, err := cache.GetJSON(context.Background(), newMemCache(), "absent", &got)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestGetJSONCorruptEntryIsEvicted(t *testing.T) {
	ctx := context.Background()
	c := newMemCache()
	_ = c.Set(ctx, "bad", []byte("{not json"), time.Minute)

	var got costCenter
	ok, err := cache.GetJSON(ctx, c, "bad", &got)
	if err != nil || ok {
		t.Fatalf("expected miss for corrupt entry, got ok=%v err=%v", ok, err)
	}
	if _, found, _ := c.Get(ctx, "bad"); found {
		t.Fatal("expected corrupt entry to be deleted")
	}
}

func TestSetJSONEncodeError(t *testing.T) {
	err := cache.SetJSON(context.Background(), newMemCache(), "ch", make(chan int), time.Minute)
	if err == nil {
		t.Fatal("expected encode error")
	}
}
