package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/middleware"
)

func TestIdentity(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		wantCode int
		want     middleware.Principal
	}{
		{
			name:     "defaults",
			headers:  map[string]string{"X-Tenant-ID": "acme", "X-Actor-ID": "u1"},
			wantCode: http.StatusOK,
			want: middleware.Principal{
				TenantID: "acme",
				Actor:    history.Actor{Type: history.ActorUser, ID: "u1"},
				Role:     middleware.RoleEmployee,
			},
		},
		{
			name: "employee manager",
			headers: map[string]string{
				"X-Tenant-ID": "acme", "X-Actor-ID": "e1", "X-Actor-Type": "employee", "X-Actor-Role": "manager",
			},
			wantCode: http.StatusOK,
			want: middleware.Principal{
				TenantID: "acme",
				Actor:    history.Actor{Type: history.ActorEmployee, ID: "e1"},
				Role:     middleware.RoleManager,
			},
		},
		{name: "missing tenant", headers: map[string]string{"X-Actor-ID": "u1"}, wantCode: http.StatusBadRequest},
		{name: "missing actor", headers: map[string]string{"X-Tenant-ID": "acme"}, wantCode: http.StatusUnauthorized},
		{
			name:     "system actor refused",
			headers:  map[string]string{"X-Tenant-ID": "acme", "X-Actor-ID": "x", "X-Actor-Type": "system"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown role",
			headers:  map[string]string{"X-Tenant-ID": "acme", "X-Actor-ID": "u1", "X-Actor-Role": "root"},
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				got middleware.Principal
				ok  bool
			)
			handler := middleware.Identity(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got, ok = middleware.PrincipalFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if !ok || got != tt.want {
				t.Fatalf("principal = %+v (ok=%v), want %+v", got, ok, tt.want)
			}
		})
	}
}
