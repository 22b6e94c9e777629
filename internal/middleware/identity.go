package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/logger"
)

// Headers set by the authenticating gateway in front of the API.
const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderActorID   = "X-Actor-ID"
	HeaderActorType = "X-Actor-Type"
	HeaderActorRole = "X-Actor-Role"
)

// Role gates privileged operations.
type Role string

const (
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	TenantID string
	Actor    history.Actor
	Role     Role
}

type principalCtxKey struct{}

// Identity extracts the caller from the gateway headers. Tenant and actor id
// are required; the actor type defaults to user and the role to employee.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := Principal{
			TenantID: r.Header.Get(HeaderTenantID),
			Actor: history.Actor{
				Type: history.ActorType(r.Header.Get(HeaderActorType)),
				ID:   r.Header.Get(HeaderActorID),
			},
			Role: Role(r.Header.Get(HeaderActorRole)),
		}
		if p.Actor.Type == "" {
			p.Actor.Type = history.ActorUser
		}
		if p.Role == "" {
			p.Role = RoleEmployee
		}

		switch {
		case p.TenantID == "":
			writeError(w, http.StatusBadRequest, "validation", HeaderTenantID+" header is required")
			return
		case p.Actor.ID == "":
			writeError(w, http.StatusUnauthorized, "unauthenticated", HeaderActorID+" header is required")
			return
		case p.Actor.Type != history.ActorUser && p.Actor.Type != history.ActorEmployee:
			writeError(w, http.StatusBadRequest, "validation", "unsupported actor type "+string(p.Actor.Type))
			return
		case p.Role != RoleManager && p.Role != RoleEmployee:
			writeError(w, http.StatusBadRequest, "validation", "unsupported role "+string(p.Role))
			return
		}

		ctx := context.WithValue(r.Context(), principalCtxKey{}, p)
		ctx = logger.WithAttrs(ctx,
			slog.String("tenant_id", p.TenantID),
			slog.String("actor_id", p.Actor.ID),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the caller stored by Identity.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}

// WithPrincipal stores p in ctx. It is used by tests and in-process callers
// that bypass the gateway headers.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}
