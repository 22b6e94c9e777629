package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/TaskForge/internal/config"
)

func limitedHandler(rl *RateLimiter) http.Handler {
	return rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(h http.Handler, addr, tenant string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", http.NoBody)
	req.RemoteAddr = addr
	if tenant != "" {
		req.Header.Set(HeaderTenantID, tenant)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterBurst(t *testing.T) {
	h := limitedHandler(NewRateLimiter(10, 3))

	for i := range 3 {
		if rec := hit(h, "192.168.1.1:5000", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, rec.Code)
		}
	}
	rec := hit(h, "192.168.1.1:5001", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Limit") != "3" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("unexpected limit headers %v", rec.Header())
	}
}

func TestRateLimiterClientIsolation(t *testing.T) {
	tests := []struct {
		name           string
		addr, tenant   string
		wantAfterFirst int
	}{
		{"same ip and tenant", "10.0.0.1:1", "acme", http.StatusTooManyRequests},
		{"other ip", "10.0.0.2:1", "acme", http.StatusOK},
		{"other tenant behind same ip", "10.0.0.1:1", "globex", http.StatusOK},
		{"anonymous on same ip", "10.0.0.1:1", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := limitedHandler(NewRateLimiter(10, 1))
			hit(h, "10.0.0.1:1", "acme")
			if rec := hit(h, tt.addr, tt.tenant); rec.Code != tt.wantAfterFirst {
				t.Fatalf("status %d, want %d", rec.Code, tt.wantAfterFirst)
			}
		})
	}
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 1)
	rl.now = func() time.Time { return now }

	if _, _, ok := rl.allow("k"); !ok {
		t.Fatal("first request should pass")
	}
	_, wait, ok := rl.allow("k")
	if ok || wait != 0.5 {
		t.Fatalf("second request: ok=%v wait=%v, want wait 0.5", ok, wait)
	}
	now = now.Add(500 * time.Millisecond)
	if _, _, ok := rl.allow("k"); !ok {
		t.Fatal("token should have refilled")
	}
	now = now.Add(time.Hour)
	if left, _, _ := rl.allow("k"); left != 0 {
		t.Fatalf("refill must cap at burst, %d tokens left", left)
	}
}

func TestRateLimiterCleanupDropsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(10, 10)
	rl.now = func() time.Time { return now }

	rl.allow("a")
	now = now.Add(time.Hour)
	rl.allow("b")
	rl.cleanup(10 * time.Minute)

	if rl.Len() != 1 {
		t.Fatalf("expected 1 bucket after cleanup, got %d", rl.Len())
	}
}

func TestRateLimiterCapsTrackedClients(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	rl.maxBuckets = 1
	rl.allow("a")
	if _, _, ok := rl.allow("b"); ok {
		t.Fatal("expected rejection at bucket capacity")
	}
	if _, _, ok := rl.allow("a"); !ok {
		t.Fatal("known client must still be served at capacity")
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "10.1.2.3:4567"
	if got := clientKey(req); got != "10.1.2.3" {
		t.Errorf("clientKey = %q, want 10.1.2.3", got)
	}
	req.Header.Set(HeaderTenantID, "acme")
	if got := clientKey(req); got != "acme@10.1.2.3" {
		t.Errorf("clientKey = %q, want acme@10.1.2.3", got)
	}
}

func TestNewRateLimiterFromConfig(t *testing.T) {
	rl, stop := NewRateLimiterFromConfig(config.Defaults().Rate)
	defer stop()
	if rl.burst != 100 || rl.rate != 10 {
		t.Fatalf("unexpected limiter %+v", rl)
	}
}
