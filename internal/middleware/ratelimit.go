package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Strob0t/TaskForge/internal/config"
)

const defaultMaxBuckets = 100000

// RateLimiter is token bucket middleware keyed by client. A client is the
// remote IP, narrowed by tenant when the request names one, so tenants
// behind a shared gateway do not starve each other.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	rate       float64 // tokens per second
	burst      int
	maxBuckets int
	now        func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// take refills b for the time since it was last seen and consumes one token.
// It returns the tokens left, or the seconds until the next token.
func (b *bucket) take(now time.Time, rate float64, burst int) (left int, wait float64, ok bool) {
	b.tokens = math.Min(float64(burst), b.tokens+now.Sub(b.seen).Seconds()*rate)
	b.seen = now
	if b.tokens < 1 {
		return 0, (1 - b.tokens) / rate, false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

// NewRateLimiter creates a limiter with the given sustained rate (requests
// per second) and burst size.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		buckets:    make(map[string]*bucket),
		rate:       rate,
		burst:      burst,
		maxBuckets: defaultMaxBuckets,
		now:        time.Now,
	}
}

// NewRateLimiterFromConfig builds a limiter from the rate config section and
// starts its idle-bucket cleanup. The returned function stops the cleanup.
func NewRateLimiterFromConfig(cfg config.Rate) (*RateLimiter, func()) {
	rl := NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst)
	return rl, rl.StartCleanup(cfg.CleanupInterval, cfg.MaxIdleTime)
}

// Handler enforces the limit and reports it in X-RateLimit-* headers.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		left, wait, ok := rl.allow(clientKey(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(left))
		if !ok {
			h.Set("Retry-After", strconv.Itoa(int(math.Max(1, math.Ceil(wait)))))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) (left int, wait float64, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, found := rl.buckets[key]
	if !found {
		if len(rl.buckets) >= rl.maxBuckets {
			return 0, 1 / rl.rate, false
		}
		b = &bucket{tokens: float64(rl.burst), seen: now}
		rl.buckets[key] = b
	}
	return b.take(now, rl.rate, rl.burst)
}

// StartCleanup drops buckets idle for longer than maxIdle every interval
// until the returned function is called.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxIdle)
	for key, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// clientKey is "<tenant>@<ip>", or the bare IP for anonymous requests.
// Proxy headers are honored only through chi's RealIP mounted ahead.
func clientKey(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if tenant := r.Header.Get(HeaderTenantID); tenant != "" {
		return tenant + "@" + ip
	}
	return ip
}
