package ristretto

import (
	"context"
	"testing"
	"time"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(1 << 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestCache_SetGetDelete(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "dir:t1:tenant:t1", []byte(`{"id":"t1"}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	val, ok, err := c.Get(ctx, "dir:t1:tenant:t1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(val) != `{"id":"t1"}` {
		t.Fatalf("unexpected value %s", val)
	}

	_ = c.Delete(ctx, "dir:t1:tenant:t1")
	if _, ok, _ := c.Get(ctx, "dir:t1:tenant:t1"); ok {
		t.Fatal("expected miss after delete")
	}
	if r := c.HitRatio(); r <= 0 || r >= 1 {
		t.Fatalf("hit ratio = %v, want between 0 and 1", r)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("v"), 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "short"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestNew_RejectsNonPositiveCost(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error")
	}
}
