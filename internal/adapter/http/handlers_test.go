package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	tfhttp "github.com/Strob0t/TaskForge/internal/adapter/http"
	"github.com/Strob0t/TaskForge/internal/domain/assignment"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tracking"
	"github.com/Strob0t/TaskForge/internal/service"
	"github.com/Strob0t/TaskForge/internal/testsupport"
)

var t0 = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

type identity struct {
	actorType, actorID, role string
}

var (
	manager = identity{"user", "mgr-1", "manager"}
	clerk   = identity{"user", "clerk-1", "employee"}
)

func asEmployee(id string) identity { return identity{"employee", id, "employee"} }

type apiHarness struct {
	router http.Handler
	clock  *testsupport.Clock
}

func newAPI(t *testing.T) *apiHarness {
	t.Helper()
	clock := testsupport.NewClock(t0)
	engine := service.NewEngine(testsupport.MustOpenStore(t), service.WithClock(clock))
	t.Cleanup(engine.Close)

	r := chi.NewRouter()
	tfhttp.MountRoutes(r, &tfhttp.Handlers{Engine: engine}, nil)
	return &apiHarness{router: r, clock: clock}
}

func (a *apiHarness) do(t *testing.T, who identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", testsupport.TenantID)
	req.Header.Set("X-Actor-ID", who.actorID)
	req.Header.Set("X-Actor-Type", who.actorType)
	req.Header.Set("X-Actor-Role", who.role)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rec, status)
	body := decode[struct {
		Code string `json:"code"`
	}](t, rec)
	if body.Code != code {
		t.Fatalf("code = %q, want %q", body.Code, code)
	}
}

func (a *apiHarness) createTask(t *testing.T, req task.CreateRequest) task.Task {
	t.Helper()
	if req.CostCenterID == "" {
		req.CostCenterID = testsupport.CostCenterID
	}
	if req.Title == "" {
		req.Title = "Replace filters"
	}
	rec := a.do(t, clerk, http.MethodPost, "/api/v1/tasks", req)
	expectStatus(t, rec, http.StatusCreated)
	return decode[task.Task](t, rec)
}

func (a *apiHarness) assign(t *testing.T, taskID, employeeID string) {
	t.Helper()
	rec := a.do(t, manager, http.MethodPost, "/api/v1/tasks/"+taskID+"/assignments",
		assignment.CreateRequest{EmployeeID: employeeID, Role: assignment.RolePrincipal, EstimatedHours: 4})
	expectStatus(t, rec, http.StatusCreated)
}

func (a *apiHarness) track(t *testing.T, taskID, employeeID string, action tracking.Action) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, asEmployee(employeeID), http.MethodPost,
		"/api/v1/tasks/"+taskID+"/assignments/"+employeeID+"/track", map[string]string{"action": string(action)})
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	api := newAPI(t)
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	tk := api.createTask(t, task.CreateRequest{
		EstimatedStartDate: &start,
		Recurrence:         &task.Recurrence{Frequency: task.FrequencyMonthly, Interval: 1},
	})
	if tk.Status != task.StatusPending {
		t.Fatalf("status = %s, want pending", tk.Status)
	}
	base := "/api/v1/tasks/" + tk.ID

	api.assign(t, tk.ID, testsupport.EmployeeE1)
	expectStatus(t, api.track(t, tk.ID, testsupport.EmployeeE1, tracking.ActionStart), http.StatusCreated)
	api.clock.Advance(4 * time.Hour)
	expectStatus(t, api.track(t, tk.ID, testsupport.EmployeeE1, tracking.ActionStop), http.StatusCreated)

	rec := api.do(t, clerk, http.MethodGet, base+"/assignments/"+testsupport.EmployeeE1+"/summary", nil)
	expectStatus(t, rec, http.StatusOK)
	sum := decode[struct {
		State         tracking.State `json:"state"`
		ClosedMinutes int64          `json:"closed_minutes"`
	}](t, rec)
	if sum.ClosedMinutes != 240 || sum.State != tracking.StateStopped {
		t.Fatalf("summary = %+v, want 240 stopped minutes", sum)
	}

	rec = api.do(t, manager, http.MethodPost, base+"/status", map[string]any{"status": "completed", "notes": "done"})
	expectStatus(t, rec, http.StatusOK)
	res := decode[struct {
		Task            task.Task `json:"task"`
		RecurrenceError string    `json:"recurrence_error"`
	}](t, rec)
	if res.Task.Status != task.StatusCompleted || res.RecurrenceError != "" {
		t.Fatalf("unexpected status response %+v", res)
	}

	rec = api.do(t, clerk, http.MethodGet, "/api/v1/tasks?parent_task_id="+tk.ID, nil)
	expectStatus(t, rec, http.StatusOK)
	successors := decode[[]task.Task](t, rec)
	if len(successors) != 1 || successors[0].EstimatedStartDate == nil ||
		!successors[0].EstimatedStartDate.Equal(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected successors %+v", successors)
	}

	// Retrying the spawn returns the same successor.
	rec = api.do(t, manager, http.MethodPost, base+"/recurrence", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[task.Task](t, rec); got.ID != successors[0].ID {
		t.Fatalf("retry spawned %s, want %s", got.ID, successors[0].ID)
	}

	rec = api.do(t, clerk, http.MethodGet, base+"/history", nil)
	expectStatus(t, rec, http.StatusOK)
	events := decode[[]history.Event](t, rec)
	if len(events) == 0 || events[0].Action != history.ActionCreated {
		t.Fatalf("unexpected history %+v", events)
	}

	rec = api.do(t, clerk, http.MethodGet, base+"/audit", nil)
	expectStatus(t, rec, http.StatusOK)
	audit := decode[service.Verification](t, rec)
	if len(audit.Mismatches) != 0 || audit.Events != len(events) {
		t.Fatalf("unexpected audit %+v", audit)
	}
}

func TestErrorMapping(t *testing.T) {
	api := newAPI(t)
	tk := api.createTask(t, task.CreateRequest{})
	base := "/api/v1/tasks/" + tk.ID
	api.assign(t, tk.ID, testsupport.EmployeeE1)

	tests := []struct {
		name   string
		who    identity
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown task", clerk, http.MethodGet, "/api/v1/tasks/nope", nil, http.StatusNotFound, "not_found"},
		{"missing title", clerk, http.MethodPost, "/api/v1/tasks", task.CreateRequest{CostCenterID: testsupport.CostCenterID}, http.StatusBadRequest, "validation"},
		{"unknown field", clerk, http.MethodPost, "/api/v1/tasks", map[string]string{"titel": "x"}, http.StatusBadRequest, "validation"},
		{"duplicate assignment", manager, http.MethodPost, base + "/assignments", assignment.CreateRequest{EmployeeID: testsupport.EmployeeE1, Role: assignment.RolePrincipal}, http.StatusConflict, "duplicate_assignment"},
		{"pause before start", asEmployee(testsupport.EmployeeE1), http.MethodPost, base + "/assignments/" + testsupport.EmployeeE1 + "/track", map[string]string{"action": "pause"}, http.StatusUnprocessableEntity, "invalid_transition"},
		{"pending cannot complete", manager, http.MethodPost, base + "/status", map[string]string{"status": "completed", "notes": "x"}, http.StatusUnprocessableEntity, "invalid_transition"},
		{"unknown status", manager, http.MethodPost, base + "/status", map[string]string{"status": "archived"}, http.StatusBadRequest, "validation"},
		{"status change needs manager", clerk, http.MethodPost, base + "/status", map[string]string{"status": "cancelled"}, http.StatusForbidden, "forbidden"},
		{"employee tracks for someone else", asEmployee(testsupport.EmployeeE2), http.MethodPost, base + "/assignments/" + testsupport.EmployeeE1 + "/track", map[string]string{"action": "start"}, http.StatusForbidden, "forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, api.do(t, tt.who, tt.method, tt.path, tt.body), tt.status, tt.code)
		})
	}
}

func TestMissingIdentityIsRejected(t *testing.T) {
	api := newAPI(t)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", http.NoBody))
	expectError(t, rec, http.StatusBadRequest, "validation")
}

func TestUnassignAndDelete(t *testing.T) {
	api := newAPI(t)
	tk := api.createTask(t, task.CreateRequest{})
	base := "/api/v1/tasks/" + tk.ID
	api.assign(t, tk.ID, testsupport.EmployeeE2)

	expectStatus(t, api.do(t, manager, http.MethodDelete, base+"/assignments/"+testsupport.EmployeeE2+"?reason=reshuffle", nil), http.StatusNoContent)

	rec := api.do(t, clerk, http.MethodGet, base+"/assignments/"+testsupport.EmployeeE2+"/status", nil)
	expectStatus(t, rec, http.StatusOK)
	if st := decode[struct {
		Status assignment.Status `json:"status"`
	}](t, rec); st.Status != assignment.StatusCancelled {
		t.Fatalf("assignment status = %s, want cancelled", st.Status)
	}

	expectStatus(t, api.do(t, manager, http.MethodDelete, base+"?reason=duplicate", nil), http.StatusNoContent)
	expectError(t, api.do(t, clerk, http.MethodGet, base, nil), http.StatusNotFound, "not_found")

	rec = api.do(t, clerk, http.MethodGet, "/api/v1/tasks?include_deleted=true", nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]task.Task](t, rec); len(list) != 1 || !list[0].Deleted {
		t.Fatalf("expected the deleted task in the listing, got %+v", list)
	}
}

func TestUpdatePostponesDueDate(t *testing.T) {
	api := newAPI(t)
	due := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	tk := api.createTask(t, task.CreateRequest{DueDate: &due})

	later := due.AddDate(0, 0, 7)
	rec := api.do(t, clerk, http.MethodPatch, "/api/v1/tasks/"+tk.ID, task.UpdateRequest{DueDate: &later})
	expectStatus(t, rec, http.StatusOK)

	rec = api.do(t, clerk, http.MethodGet, "/api/v1/tasks/"+tk.ID+"/history", nil)
	events := decode[[]history.Event](t, rec)
	if last := events[len(events)-1]; last.Action != history.ActionPostponed {
		t.Fatalf("last action = %s, want postponed", last.Action)
	}
}

func TestEntriesListing(t *testing.T) {
	api := newAPI(t)
	tk := api.createTask(t, task.CreateRequest{})
	api.assign(t, tk.ID, testsupport.EmployeeE1)

	path := "/api/v1/tasks/" + tk.ID + "/assignments/" + testsupport.EmployeeE1 + "/entries"
	rec := api.do(t, clerk, http.MethodGet, path, nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "[]\n" {
		t.Fatalf("expected empty array, got %q", rec.Body.String())
	}

	api.track(t, tk.ID, testsupport.EmployeeE1, tracking.ActionStart)
	api.clock.Advance(time.Minute)
	api.track(t, tk.ID, testsupport.EmployeeE1, tracking.ActionPause)

	rec = api.do(t, clerk, http.MethodGet, path, nil)
	if entries := decode[[]tracking.Entry](t, rec); len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}
