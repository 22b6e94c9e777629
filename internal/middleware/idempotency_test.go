package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/middleware"
)

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func makeTestHandler(counter *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*counter++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d}`, *counter)
	})
}

func idempotentRequest(method, path, tenant, key string) *http.Request {
	req := httptest.NewRequest(method, path, http.NoBody)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	ctx := middleware.WithPrincipal(req.Context(), middleware.Principal{
		TenantID: tenant,
		Actor:    history.Actor{Type: history.ActorUser, ID: "u1"},
		Role:     middleware.RoleManager,
	})
	return req.WithContext(ctx)
}

func TestIdempotency_NoHeader(t *testing.T) {
	counter := 0
	handler := middleware.Idempotency(newMemCache(), time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	for range 2 {
		handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "/tasks", "acme", ""))
	}
	if counter != 2 {
		t.Fatalf("expected 2 calls, got %d", counter)
	}
}

func TestIdempotency_SecondRequestReplays(t *testing.T) {
	counter := 0
	c := newMemCache()
	handler := middleware.Idempotency(c, time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, idempotentRequest(http.MethodPost, "/tasks", "acme", "key-1"))
	if !c.has("idem:acme:key-1") {
		t.Fatal("expected tenant-scoped cache entry")
	}

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, idempotentRequest(http.MethodPost, "/tasks", "acme", "key-1"))

	if counter != 1 {
		t.Fatalf("expected handler called once, got %d", counter)
	}
	if rec2.Code != http.StatusCreated || rec2.Body.String() != rec1.Body.String() {
		t.Fatalf("replay = %d %q, want %d %q", rec2.Code, rec2.Body.String(), rec1.Code, rec1.Body.String())
	}
	if rec2.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replay marker header")
	}
}

func TestIdempotency_KeysAreTenantScoped(t *testing.T) {
	counter := 0
	handler := middleware.Idempotency(newMemCache(), time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "/tasks", "acme", "same"))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "/tasks", "globex", "same"))
	if counter != 2 {
		t.Fatalf("expected 2 calls across tenants, got %d", counter)
	}
}

func TestIdempotency_ReusedForDifferentRequest(t *testing.T) {
	counter := 0
	handler := middleware.Idempotency(newMemCache(), time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "/tasks", "acme", "k"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest(http.MethodPost, "/tasks/t1/assignments", "acme", "k"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if counter != 1 {
		t.Fatalf("expected 1 call, got %d", counter)
	}
}

func TestIdempotency_ServerErrorsAreNotStored(t *testing.T) {
	counter := 0
	c := newMemCache()
	handler := middleware.Idempotency(c, time.Hour)(makeTestHandler(&counter, http.StatusInternalServerError))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "/tasks", "acme", "k"))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "/tasks", "acme", "k"))
	if counter != 2 {
		t.Fatalf("expected retry after 500, got %d calls", counter)
	}
}

func TestIdempotency_GETIgnored(t *testing.T) {
	counter := 0
	c := newMemCache()
	handler := middleware.Idempotency(c, time.Hour)(makeTestHandler(&counter, http.StatusOK))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodGet, "/tasks", "acme", "key-get"))
	if counter != 1 || c.has("idem:acme:key-get") {
		t.Fatalf("GET should pass through uncached (calls=%d)", counter)
	}
}
