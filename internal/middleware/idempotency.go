package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/Strob0t/TaskForge/internal/port/cache"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyBody   = 1 << 20 // 1 MB
	maxIdempotencyKey    = 255
)

// idempotencyEntry stores a completed HTTP response.
type idempotencyEntry struct {
	Method     string              `json:"method"`
	Path       string              `json:"path"`
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Idempotency returns middleware that replays the stored response of a
// mutating request carrying an already seen Idempotency-Key. Keys are scoped
// to the caller's tenant, so it must run after Identity. Server errors are
// not stored and may be retried with the same key.
func Idempotency(c cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(headerIdempotencyKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKey {
				writeError(w, http.StatusBadRequest, "validation", "Idempotency-Key too long")
				return
			}

			tenantID := ""
			if p, ok := PrincipalFromContext(r.Context()); ok {
				tenantID = p.TenantID
			}
			cacheKey := cache.Key("idem", tenantID, key)
			ctx := r.Context()

			var cached idempotencyEntry
			hit, err := cache.GetJSON(ctx, c, cacheKey, &cached)
			if err != nil {
				slog.WarnContext(ctx, "idempotency lookup failed", "key", key, "error", err)
			}
			if hit {
				if cached.Method != r.Method || cached.Path != r.URL.Path {
					writeError(w, http.StatusUnprocessableEntity, "validation", "Idempotency-Key was used for a different request")
					return
				}
				for k, vals := range cached.Headers {
					for _, v := range vals {
						w.Header().Add(k, v)
					}
				}
				w.Header().Set(headerReplayed, "true")
				w.WriteHeader(cached.StatusCode)
				_, _ = w.Write(cached.Body)
				return
			}

			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError || rec.body.Len() > maxIdempotencyBody {
				return
			}
			entry := idempotencyEntry{
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: rec.statusCode,
				Headers:    w.Header().Clone(),
				Body:       rec.body.Bytes(),
			}
			if err := cache.SetJSON(ctx, c, cacheKey, entry, ttl); err != nil {
				slog.WarnContext(ctx, "idempotency store failed", "key", key, "error", err)
			}
		})
	}
}

// responseRecorder wraps http.ResponseWriter to capture the response.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
