package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/TaskForge/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router. Identity
// runs on every API route; idempotency wraps the mutating ones and may be
// nil. Status changes, assignment management, recurrence retry and deletion
// require the manager role.
func MountRoutes(r chi.Router, h *Handlers, idempotency func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": "1"})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity)
			if idempotency != nil {
				r.Use(idempotency)
			}
			manager := middleware.RequireRole(middleware.RoleManager)

			r.Get("/tasks", h.ListTasks)
			r.Post("/tasks", h.CreateTask)
			r.Get("/tasks/{id}", handleTaskGet(h.Engine.Tasks.Get))
			r.Patch("/tasks/{id}", h.UpdateTask)
			r.With(manager).Delete("/tasks/{id}", h.DeleteTask)
			r.With(manager).Post("/tasks/{id}/status", h.ChangeStatus)
			r.With(manager).Post("/tasks/{id}/recurrence", h.RetryRecurrence)

			r.Get("/tasks/{id}/history", h.ListHistory)
			r.Get("/tasks/{id}/audit", handleTaskGet(h.Engine.History.Verify))

			r.Get("/tasks/{id}/assignments", handleTaskList(h.Engine.Assignments.List))
			r.With(manager).Post("/tasks/{id}/assignments", h.Assign)
			r.Get("/tasks/{id}/assignments/{employeeID}", handleAssignmentGet(h.Engine.Assignments.Get))
			r.With(manager).Delete("/tasks/{id}/assignments/{employeeID}", h.Unassign)
			r.Get("/tasks/{id}/assignments/{employeeID}/status", h.AssignmentStatus)
			r.Post("/tasks/{id}/assignments/{employeeID}/complete", h.CompleteAssignment)
			r.Post("/tasks/{id}/assignments/{employeeID}/track", h.Track)
			r.Get("/tasks/{id}/assignments/{employeeID}/entries", h.ListEntries)
			r.Get("/tasks/{id}/assignments/{employeeID}/summary", h.TrackingSummary)
		})
	})
}
