// Package http exposes the task engine as a JSON REST API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/assignment"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tracking"
	"github.com/Strob0t/TaskForge/internal/service"
)

const defaultBodyLimit = 1 << 20 // 1 MB

// Handlers holds the engine the HTTP handlers delegate to.
type Handlers struct {
	Engine    *service.Engine
	BodyLimit int64
}

func (h *Handlers) bodyLimit() int64 {
	if h.BodyLimit > 0 {
		return h.BodyLimit
	}
	return defaultBodyLimit
}

// --- Tasks ---

// CreateTask handles POST /api/v1/tasks.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	t, err := h.Engine.CreateTask(r.Context(), callerFrom(r), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ListTasks handles GET /api/v1/tasks?status=&cost_center_id=&parent_task_id=&include_deleted=&limit=.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := task.ListFilter{
		Status:       task.Status(q.Get("status")),
		CostCenterID: q.Get("cost_center_id"),
		ParentTaskID: q.Get("parent_task_id"),
	}
	if v := q.Get("include_deleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "include_deleted must be a boolean")
			return
		}
		f.IncludeDeleted = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "validation", "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	tasks, err := h.Engine.Tasks.List(r.Context(), tenantOf(r), f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// UpdateTask handles PATCH /api/v1/tasks/{id}.
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.UpdateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	t, err := h.Engine.Tasks.Update(r.Context(), callerFrom(r), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTask handles DELETE /api/v1/tasks/{id}?reason=.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Tasks.SoftDelete(r.Context(), callerFrom(r), urlParam(r, "id"), r.URL.Query().Get("reason")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status   task.Status `json:"status"`
	Notes    string      `json:"notes,omitempty"`
	Override bool        `json:"override,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// statusResponse carries the committed task and, when the recurring
// successor could not be created, the follow-up error.
type statusResponse struct {
	Task            *task.Task `json:"task"`
	RecurrenceError string     `json:"recurrence_error,omitempty"`
}

// ChangeStatus handles POST /api/v1/tasks/{id}/status.
func (h *Handlers) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[statusRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	t, err := h.Engine.ChangeStatus(r.Context(), callerFrom(r), urlParam(r, "id"), req.Status,
		service.StatusOptions{Notes: req.Notes, Override: req.Override, Reason: req.Reason})

	var recErr *service.RecurrenceError
	switch {
	case errors.As(err, &recErr) && t != nil:
		writeJSON(w, http.StatusOK, statusResponse{Task: t, RecurrenceError: recErr.Error()})
	case err != nil:
		writeDomainError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, statusResponse{Task: t})
	}
}

// RetryRecurrence handles POST /api/v1/tasks/{id}/recurrence. It returns the
// successor, or 204 when the series has ended.
func (h *Handlers) RetryRecurrence(w http.ResponseWriter, r *http.Request) {
	succ, err := h.Engine.Recurrence.OnTerminalStatus(r.Context(), callerFrom(r), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if succ == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, succ)
}

// --- Assignments ---

// Assign handles POST /api/v1/tasks/{id}/assignments.
func (h *Handlers) Assign(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[assignment.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	a, err := h.Engine.Assign(r.Context(), callerFrom(r), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Unassign handles DELETE /api/v1/tasks/{id}/assignments/{employeeID}?reason=.
func (h *Handlers) Unassign(w http.ResponseWriter, r *http.Request) {
	err := h.Engine.Unassign(r.Context(), callerFrom(r), urlParam(r, "id"), urlParam(r, "employeeID"),
		r.URL.Query().Get("reason"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeRequest struct {
	Notes string `json:"notes,omitempty"`
}

// CompleteAssignment handles POST /api/v1/tasks/{id}/assignments/{employeeID}/complete.
func (h *Handlers) CompleteAssignment(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[completeRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	employeeID := urlParam(r, "employeeID")
	caller := callerFrom(r)
	if err := checkSelf(caller, employeeID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a, err := h.Engine.Assignments.Complete(r.Context(), caller, urlParam(r, "id"), employeeID, req.Notes)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type assignmentStatusResponse struct {
	TaskID     string            `json:"task_id"`
	EmployeeID string            `json:"employee_id"`
	Status     assignment.Status `json:"status"`
}

// AssignmentStatus handles GET /api/v1/tasks/{id}/assignments/{employeeID}/status.
func (h *Handlers) AssignmentStatus(w http.ResponseWriter, r *http.Request) {
	taskID, employeeID := urlParam(r, "id"), urlParam(r, "employeeID")
	st, err := h.Engine.Assignments.Status(r.Context(), tenantOf(r), taskID, employeeID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentStatusResponse{TaskID: taskID, EmployeeID: employeeID, Status: st})
}

// --- Time tracking ---

type trackRequest struct {
	Action   tracking.Action `json:"action"`
	Location string          `json:"location,omitempty"`
	Notes    string          `json:"notes,omitempty"`
}

// Track handles POST /api/v1/tasks/{id}/assignments/{employeeID}/track.
func (h *Handlers) Track(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[trackRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	employeeID := urlParam(r, "employeeID")
	caller := callerFrom(r)
	if err := checkSelf(caller, employeeID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	e, err := h.Engine.TrackAction(r.Context(), caller, urlParam(r, "id"), employeeID, req.Action,
		service.TrackOptions{Location: req.Location, Notes: req.Notes})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// ListEntries handles GET /api/v1/tasks/{id}/assignments/{employeeID}/entries.
func (h *Handlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Engine.Tracker.Entries(r.Context(), tenantOf(r), urlParam(r, "id"), urlParam(r, "employeeID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []tracking.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type summaryResponse struct {
	State         tracking.State `json:"state"`
	ClosedMinutes int64          `json:"closed_minutes"`
	OpenSince     *time.Time     `json:"open_since,omitempty"`
}

// TrackingSummary handles GET /api/v1/tasks/{id}/assignments/{employeeID}/summary.
func (h *Handlers) TrackingSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Engine.Tracker.Summary(r.Context(), tenantOf(r), urlParam(r, "id"), urlParam(r, "employeeID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{State: sum.State, ClosedMinutes: sum.Minutes(), OpenSince: sum.OpenSince})
}

// checkSelf restricts employee actors to their own assignment.
func checkSelf(c service.Caller, employeeID string) error {
	if c.Actor.Type == history.ActorEmployee && c.Actor.ID != employeeID {
		return fmt.Errorf("employee %s may only act on their own assignment: %w", c.Actor.ID, domain.ErrForbidden)
	}
	return nil
}

// --- History ---

// ListHistory handles GET /api/v1/tasks/{id}/history. Events are streamed
// page by page as one JSON array.
func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	enc := json.NewEncoder(w)
	started := false
	for ev, err := range h.Engine.History.List(ctx, tenantOf(r), urlParam(r, "id")) {
		if err != nil {
			if !started {
				writeDomainError(w, r, err)
				return
			}
			// Headers are gone; truncate the array so the client sees invalid JSON.
			slog.ErrorContext(ctx, "history stream aborted", "error", err)
			return
		}
		if !started {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("["))
			started = true
		} else {
			_, _ = w.Write([]byte(","))
		}
		if err := enc.Encode(ev); err != nil {
			slog.ErrorContext(ctx, "history stream write failed", "error", err)
			return
		}
	}
	if !started {
		writeJSON(w, http.StatusOK, []history.Event{})
		return
	}
	_, _ = w.Write([]byte("]"))
}
