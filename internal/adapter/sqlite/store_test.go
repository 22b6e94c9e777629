package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/TaskForge/internal/adapter/sqlite"
	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/assignment"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tracking"
	"github.com/Strob0t/TaskForge/internal/port/database"
	"github.com/Strob0t/TaskForge/internal/testsupport"
)

var t0 = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func newTask() *task.Task {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return &task.Task{
		ID:                 uuid.NewString(),
		TenantID:           testsupport.TenantID,
		CostCenterID:       testsupport.CostCenterID,
		TypeID:             testsupport.TaskTypeID,
		Title:              "Monthly close",
		Priority:           task.PriorityHigh,
		Status:             task.StatusPending,
		EstimatedStartDate: &start,
		Recurrence:         &task.Recurrence{Frequency: task.FrequencyMonthly, Interval: 1},
		Occurrence:         1,
		CreatedAt:          t0,
		UpdatedAt:          t0,
	}
}

func newAssignment(taskID, employeeID string) *assignment.Assignment {
	return &assignment.Assignment{
		ID:           uuid.NewString(),
		TenantID:     testsupport.TenantID,
		TaskID:       taskID,
		EmployeeID:   employeeID,
		Role:         assignment.RolePrincipal,
		Status:       assignment.StatusAssigned,
		TrackerState: tracking.StateNotStarted,
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
}

func mustCreateTask(t *testing.T, s *sqlite.Store) *task.Task {
	t.Helper()
	tk := newTask()
	if err := s.CreateTask(context.Background(), tk); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return tk
}

func TestOpenTakesProcessLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.db")
	first, err := sqlite.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer first.Close()

	_, err = sqlite.Open(context.Background(), path)
	if !errors.Is(err, sqlite.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	if err := sqlite.RunMigrations(context.Background(), path); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	v, err := sqlite.MigrationVersion(context.Background(), path)
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if v != 1 {
		t.Fatalf("version = %d, want 1", v)
	}
	if err := sqlite.RollbackMigrations(context.Background(), path, 1); err != nil {
		t.Fatalf("RollbackMigrations: %v", err)
	}
	v, err = sqlite.MigrationVersion(context.Background(), path)
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if v != 0 {
		t.Fatalf("version after rollback = %d, want 0", v)
	}
}

func TestTaskRoundTrip(t *testing.T) {
	s := testsupport.MustOpenStore(t)
	tk := mustCreateTask(t, s)

	got, err := s.GetTask(context.Background(), testsupport.TenantID, tk.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Title != tk.Title || got.Priority != task.PriorityHigh || got.TypeID != testsupport.TaskTypeID {
		t.Fatalf("unexpected task %+v", got)
	}
	if !got.EstimatedStartDate.Equal(*tk.EstimatedStartDate) || !got.CreatedAt.Equal(t0) {
		t.Fatalf("dates not preserved: %+v", got)
	}
	if got.Recurrence == nil || got.Recurrence.Interval != 1 {
		t.Fatalf("recurrence not preserved: %+v", got.Recurrence)
	}
	if got.Version != 1 {
		t.Fatalf("version = %d, want 1", got.Version)
	}

	if _, err := s.GetTask(context.Background(), testsupport.OtherTenantID, tk.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign tenant read: expected ErrNotFound, got %v", err)
	}
}

func TestLockTaskReadsInsideTx(t *testing.T) {
	s := testsupport.MustOpenStore(t)
	tk := mustCreateTask(t, s)
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context, tx database.Store) error {
		for _, mode := range []database.LockMode{database.LockShared, database.LockExclusive} {
			got, err := tx.LockTask(ctx, testsupport.TenantID, tk.ID, mode)
			if err != nil {
				return err
			}
			if got.ID != tk.ID || got.Version != tk.Version {
				t.Errorf("mode %d: unexpected task %+v", mode, got)
			}
		}
		_, err := tx.LockTask(ctx, testsupport.OtherTenantID, tk.ID, database.LockExclusive)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("foreign tenant lock: expected ErrNotFound, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
}

func TestUpdateTaskOptimisticVersion(t *testing.T) {
	s := testsupport.MustOpenStore(t)
	ctx := context.Background()
	tk := mustCreateTask(t, s)

	a := tk.Clone()
	b := tk.Clone()

	a.Status = task.StatusCancelled
	if err := s.UpdateTask(ctx, a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if a.Version != 2 {
		t.Fatalf("version = %d, want 2", a.Version)
	}

	b.Title = "Racing edit"
	if err := s.UpdateTask(ctx, b); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second update: expected ErrConflict, got %v", err)
	}

	got, _ := s.GetTask(ctx, testsupport.TenantID, tk.ID)
	if got.Status != task.StatusCancelled || got.Title != tk.Title {
		t.Fatalf("loser must not be applied: %+v", got)
	}
}

func TestListTasksFilters(t *testing.T) {
	s := testsupport.MustOpenStore(t)
	ctx := context.Background()

	live := mustCreateTask(t, s)
	gone := mustCreateTask(t, s)
	now := t0.Add(time.Hour)
	gone.Deleted = true
	gone.DeletedAt = &now
	if err := s.UpdateTask(ctx, gone); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	tests := []struct {
		name   string
		filter task.ListFilter
		want   int
	}{
		{"default hides deleted", task.ListFilter{}, 1},
		{"include deleted", task.ListFilter{IncludeDeleted: true}, 2},
		{"status", task.ListFilter{Status: task.StatusPending}, 1},
		{"status no match", task.ListFilter{Status: task.StatusCompleted}, 0},
		{"cost center", task.ListFilter{CostCenterID: testsupport.CostCenterID}, 1},
		{"limit", task.ListFilter{IncludeDeleted: true, Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTasks(ctx, testsupport.TenantID, tt.filter)
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d tasks, want %d", len(got), tt.want)
			}
		})
	}

	got, _ := s.ListTasks(ctx, testsupport.TenantID, task.ListFilter{})
	if got[0].ID != live.ID {
		t.Fatalf("expected live task, got %s", got[0].ID)
	}
}

func TestSuccessorUniqueness(t *testing.T) {
	s := testsupport.MustOpenStore(t)
	ctx := context.Background()
	parent := mustCreateTask(t, s)

	first := newTask()
	first.ParentTaskID = parent.ID
	if err := s.CreateTask(ctx, first); err != nil {
		t.Fatalf("first successor: %v", err)
	}
	second := newTask()
	second.ParentTaskID = parent.ID
	if err := s.CreateTask(ctx, second); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second successor: expected ErrConflict, got %v", err)
	}

	found, err := s.FindSuccessor(ctx, testsupport.TenantID, parent.ID)
	if err != nil {
		t.Fatalf("FindSuccessor: %v", err)
	}
	if found.ID != first.ID {
		t.Fatalf("successor = %s, want %s", found.ID, first.ID)
	}
	if _, err := s.FindSuccessor(ctx, testsupport.TenantID, first.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignmentDuplicateAndUpdate(t *testing.T) {
	s := testsupport.MustOpenStore(t)
	ctx := context.Background()
	tk := mustCreateTask(t, s)

	a := newAssignment(tk.ID, testsupport.EmployeeE1)
	rate := 42.5
	a.HourlyRate = &rate
	if err := s.CreateAssignment(ctx, a); err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	if err := s.CreateAssignment(ctx, newAssignment(tk.ID, testsupport.EmployeeE1)); !errors.Is(err, domain.ErrDuplicateAssignment) {
		t.Fatalf("expected ErrDuplicateAssignment, got %v", err)
	}

	open := t0.Add(time.Minute)
	a.Status = assignment.StatusInProgress
	a.TrackerState = tracking.StateRunning
	a.OpenSince = &open
	if err := s.UpdateAssignment(ctx, a); err != nil {
		t.Fatalf("UpdateAssignment: %v", err)
	}

	got, err := s.GetAssignment(ctx, testsupport.TenantID, tk.ID, testsupport.EmployeeE1)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if got.Status != assignment.StatusInProgress || got.TrackerState != tracking.StateRunning {
		t.Fatalf("unexpected assignment %+v", got)
	}
	if got.OpenSince == nil || !got.OpenSince.Equal(open) {
		t.Fatalf("open_since = %v, want %v", got.OpenSince, open)
	}
	if got.HourlyRate == nil || *got.HourlyRate != rate {
		t.Fatalf("hourly rate not preserved: %v", got.HourlyRate)
	}
	if got.Version != 2 {
		t.Fatalf("version = %d, want 2", got.Version)
	}

	list, err := s.ListAssignments(ctx, testsupport.TenantID, tk.ID)
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly one assignment row, got %d", len(list))
	}
}

func TestEntriesListedInOrder(t *testing.T) {
	s := testsupport.MustOpenStore(t)
	ctx := context.Background()
	tk := mustCreateTask(t, s)
	a := newAssignment(tk.ID, testsupport.EmployeeE1)
	if err := s.CreateAssignment(ctx, a); err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}

	actions := []tracking.Action{tracking.ActionStart, tracking.ActionPause, tracking.ActionResume, tracking.ActionStop}
	for i, act := range actions {
		e := &tracking.Entry{
			ID: uuid.NewString(), TenantID: testsupport.TenantID, TaskID: tk.ID, AssignmentID: a.ID,
			Action: act, At: t0.Add(time.Duration(i) * time.Hour),
		}
		if err := s.AppendEntry(ctx, e); err != nil {
			t.Fatalf("AppendEntry: %v", err)
		}
	}

	entries, err := s.ListEntries(ctx, testsupport.TenantID, a.ID)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != len(actions) {
		t.Fatalf("got %d entries, want %d", len(entries), len(actions))
	}
	for i, e := range entries {
		if e.Action != actions[i] {
			t.Fatalf("entry %d action = %s, want %s", i, e.Action, actions[i])
		}
	}
}

func TestWithTxRollbackAndSavepoint(t *testing.T) {
	s := testsupport.MustOpenStore(t)
	ctx := context.Background()
	tk := mustCreateTask(t, s)

	event := func(action history.Action) *history.Event {
		return &history.Event{
			ID: uuid.NewString(), TenantID: testsupport.TenantID, TaskID: tk.ID,
			ActorType: history.ActorUser, ActorID: "u1", Action: action, At: t0,
		}
	}

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx database.Store) error {
		if err := tx.AppendEvent(ctx, event(history.ActionUpdated)); err != nil {
			return err
		}
		// A failing savepoint only undoes its own writes.
		nested := tx.WithTx(ctx, func(ctx context.Context, inner database.Store) error {
			if err := inner.AppendEvent(ctx, event(history.ActionAssigned)); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(nested, boom) {
			t.Errorf("nested: expected boom, got %v", nested)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	events, err := s.ListEvents(ctx, testsupport.TenantID, tk.ID, history.Cursor{}, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].Action != history.ActionUpdated {
		t.Fatalf("expected only the outer event, got %+v", events)
	}

	err = s.WithTx(ctx, func(ctx context.Context, tx database.Store) error {
		if err := tx.AppendEvent(ctx, event(history.ActionDeleted)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	events, _ = s.ListEvents(ctx, testsupport.TenantID, tk.ID, history.Cursor{}, 10)
	if len(events) != 1 {
		t.Fatalf("rolled back event must not persist, got %d events", len(events))
	}
}

func TestHistoryPagingOrder(t *testing.T) {
	s := testsupport.MustOpenStore(t)
	ctx := context.Background()
	tk := mustCreateTask(t, s)

	for i := range 7 {
		ev := &history.Event{
			ID: uuid.NewString(), TenantID: testsupport.TenantID, TaskID: tk.ID,
			ActorType: history.ActorSystem, ActorID: "system", Action: history.ActionUpdated,
			Changes: []domain.FieldChange{{Field: "title", Old: "a", New: "b"}},
			At:      t0.Add(time.Duration(i/3) * time.Second),
		}
		if err := s.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
		if ev.Seq == 0 {
			t.Fatal("AppendEvent did not assign seq")
		}
	}

	var (
		cursor history.Cursor
		all    []history.Event
	)
	for {
		page, err := s.ListEvents(ctx, testsupport.TenantID, tk.ID, cursor, 3)
		if err != nil {
			t.Fatalf("ListEvents: %v", err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		cursor = history.CursorOf(&page[len(page)-1])
	}
	if len(all) != 7 {
		t.Fatalf("got %d events, want 7", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Seq <= all[i-1].Seq {
			t.Fatalf("events out of order at %d", i)
		}
	}
	if all[0].Changes[0].Field != "title" {
		t.Fatalf("changes not decoded: %+v", all[0].Changes)
	}
}

func TestDirectoryLookups(t *testing.T) {
	s := testsupport.MustOpenStore(t)
	ctx := context.Background()

	tt, err := s.GetTaskType(ctx, testsupport.TenantID, testsupport.ApprovalTypeID)
	if err != nil {
		t.Fatalf("GetTaskType: %v", err)
	}
	if !tt.RequiresApproval {
		t.Fatal("expected requires_approval")
	}
	emp, err := s.GetEmployee(ctx, testsupport.TenantID, testsupport.InactiveEmpID)
	if err != nil {
		t.Fatalf("GetEmployee: %v", err)
	}
	if emp.Active {
		t.Fatal("expected inactive employee")
	}
	if _, err := s.GetEmployee(ctx, testsupport.TenantID, testsupport.OtherEmployeeID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign employee: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetCostCenter(ctx, testsupport.OtherTenantID, testsupport.CostCenterID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign cost center: expected ErrNotFound, got %v", err)
	}
}
