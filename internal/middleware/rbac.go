package middleware

import "net/http"

// RequireRole returns middleware that restricts access to callers with one
// of the given roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			if !allowed[p.Role] {
				writeError(w, http.StatusForbidden, "forbidden", "role "+string(p.Role)+" may not perform this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
