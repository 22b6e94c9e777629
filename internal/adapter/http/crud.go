package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/TaskForge/internal/middleware"
)

// ---------------------------------------------------------------------------
// Generic tenant-scoped read handler factories
// ---------------------------------------------------------------------------

func tenantOf(r *http.Request) string {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return p.TenantID
}

// handleTaskList creates a handler that lists resources owned by the task in
// URL param "id".
func handleTaskList[T any](listFn func(ctx context.Context, tenantID, taskID string) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := listFn(r.Context(), tenantOf(r), urlParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// handleTaskGet creates a handler that reads one resource of the task in URL
// param "id".
func handleTaskGet[T any](getFn func(ctx context.Context, tenantID, taskID string) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := getFn(r.Context(), tenantOf(r), urlParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// handleAssignmentGet creates a handler that reads one resource of the
// assignment addressed by URL params "id" and "employeeID".
func handleAssignmentGet[T any](getFn func(ctx context.Context, tenantID, taskID, employeeID string) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := getFn(r.Context(), tenantOf(r), urlParam(r, "id"), urlParam(r, "employeeID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}
