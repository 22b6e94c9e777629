package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/middleware"
	"github.com/Strob0t/TaskForge/internal/service"
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit. Unknown fields are
// rejected so typos in optional fields do not pass silently.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "validation", "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "validation", "invalid request body: "+err.Error())
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// callerFrom builds the engine caller from the request principal. Identity
// middleware guarantees one is present on API routes.
func callerFrom(r *http.Request) service.Caller {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return service.Caller{TenantID: p.TenantID, Actor: p.Actor}
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// errorKinds maps domain sentinels to HTTP status and a stable code. Order
// matters: the first match wins.
var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrValidation, http.StatusBadRequest, "validation"},
	{domain.ErrDuplicateAssignment, http.StatusConflict, "duplicate_assignment"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrInvalidTransition, http.StatusUnprocessableEntity, "invalid_transition"},
	{domain.ErrPrerequisiteNotMet, http.StatusUnprocessableEntity, "prerequisite_not_met"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
}

// writeDomainError renders err with its mapped status. Unmapped errors are
// logged and reported as a generic 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			writeError(w, k.status, k.code, err.Error())
			return
		}
	}
	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal server error")
}
