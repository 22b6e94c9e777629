package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/assignment"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tracking"
)

// RecurrenceGenerator creates the next occurrence of a recurring task when
// it reaches a terminal status.
type RecurrenceGenerator struct {
	core *core
}

// OnTerminalStatus spawns the successor of a terminal task unless one
// exists already, and returns the successor (nil when the series ended).
// Calling it again for the same task never creates a second successor.
func (g *RecurrenceGenerator) OnTerminalStatus(ctx context.Context, caller Caller, taskID string) (*task.Task, error) {
	var (
		successor *task.Task
		created   bool
	)
	err := g.core.run(ctx, "recurrence", caller, taskID, func(ctx context.Context, u *unit) error {
		t, err := u.loadTask(ctx, taskID)
		if err != nil {
			return err
		}
		if !t.Status.IsTerminal() {
			return domain.Prerequisitef("task %s is %s, not terminal", taskID, t.Status)
		}
		if successor, err = g.spawn(ctx, u, t); err != nil {
			return err
		}
		if successor != nil {
			created = true
			return nil
		}
		if t.SuccessorID != "" {
			successor, err = u.tx.GetTask(ctx, caller.TenantID, t.SuccessorID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		g.spawned(ctx, successor)
	}
	return successor, nil
}

// spawn creates the successor of parent inside u and marks parent with its
// id. It returns nil when the recurrence is inactive, exhausted or already
// spawned. parent is only modified when spawn succeeds.
func (g *RecurrenceGenerator) spawn(ctx context.Context, u *unit, parent *task.Task) (*task.Task, error) {
	if !parent.Recurrence.Active() || parent.SuccessorID != "" {
		return nil, nil
	}

	p := parent.Clone()
	existing, err := u.tx.FindSuccessor(ctx, p.TenantID, p.ID)
	switch {
	case err == nil:
		// Successor row exists without the marker: repair the marker only.
		p.SuccessorID = existing.ID
		p.UpdatedAt = u.at(p.UpdatedAt)
		if err := u.tx.UpdateTask(ctx, p); err != nil {
			return nil, err
		}
		*parent = *p
		return nil, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	terminalAt := p.UpdatedAt
	if p.CompletionDate != nil {
		terminalAt = *p.CompletionDate
	}
	next, ok := p.Recurrence.NextOccurrence(p.Occurrence, p.EstimatedStartDate, p.DueDate, terminalAt)
	if !ok {
		return nil, nil
	}

	at := u.at(p.UpdatedAt)
	succ := &task.Task{
		ID:                 newID(),
		TenantID:           p.TenantID,
		TypeID:             p.TypeID,
		CostCenterID:       p.CostCenterID,
		Title:              p.Title,
		Description:        p.Description,
		Priority:           p.Priority,
		Status:             task.StatusPending,
		RequiresApproval:   p.RequiresApproval,
		EstimatedStartDate: next.EstimatedStartDate,
		DueDate:            next.DueDate,
		Recurrence:         &next.Recurrence,
		Occurrence:         next.Occurrence,
		ParentTaskID:       p.ID,
		RequestedBy:        p.RequestedBy,
		CreatedAt:          at,
		UpdatedAt:          at,
	}
	if err := u.tx.CreateTask(ctx, succ); err != nil {
		return nil, fmt.Errorf("create successor: %w", err)
	}
	if err := u.record(ctx, history.Event{
		TaskID:    succ.ID,
		ActorType: history.ActorSystem,
		ActorID:   history.System.ID,
		Action:    history.ActionCreated,
		NewStatus: string(succ.Status),
		Reason:    "recurrence of " + p.ID,
		At:        at,
	}); err != nil {
		return nil, err
	}
	if err := g.copyAssignments(ctx, u, p, succ); err != nil {
		return nil, err
	}

	p.SuccessorID = succ.ID
	p.UpdatedAt = at
	if err := u.tx.UpdateTask(ctx, p); err != nil {
		return nil, fmt.Errorf("mark successor: %w", err)
	}
	*parent = *p
	return succ, nil
}

// copyAssignments assigns the parent's assignment template to succ,
// skipping employees that left or were deactivated.
func (g *RecurrenceGenerator) copyAssignments(ctx context.Context, u *unit, parent, succ *task.Task) error {
	list, err := u.tx.ListAssignments(ctx, parent.TenantID, parent.ID)
	if err != nil {
		return err
	}
	for _, tpl := range assignment.Templates(list) {
		emp, err := u.tx.GetEmployee(ctx, parent.TenantID, tpl.EmployeeID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			slog.DebugContext(ctx, "recurrence skips unknown employee", "task_id", succ.ID, "employee_id", tpl.EmployeeID)
			continue
		case err != nil:
			return err
		case !emp.Active:
			slog.DebugContext(ctx, "recurrence skips inactive employee", "task_id", succ.ID, "employee_id", tpl.EmployeeID)
			continue
		}
		a := &assignment.Assignment{
			ID:             newID(),
			TenantID:       succ.TenantID,
			TaskID:         succ.ID,
			EmployeeID:     tpl.EmployeeID,
			Role:           tpl.Role,
			Status:         assignment.StatusAssigned,
			TrackerState:   tracking.StateNotStarted,
			EstimatedHours: tpl.EstimatedHours,
			HourlyRate:     tpl.HourlyRate,
			CreatedAt:      succ.CreatedAt,
			UpdatedAt:      succ.CreatedAt,
		}
		if err := u.tx.CreateAssignment(ctx, a); err != nil {
			return fmt.Errorf("copy assignment of %s: %w", tpl.EmployeeID, err)
		}
		if err := u.record(ctx, history.Event{
			TaskID:       succ.ID,
			AssignmentID: a.ID,
			ActorType:    history.ActorSystem,
			ActorID:      history.System.ID,
			Action:       history.ActionAssigned,
			NewStatus:    string(a.Status),
			At:           succ.CreatedAt,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (g *RecurrenceGenerator) failed(ctx context.Context, taskID string, err error) error {
	slog.WarnContext(ctx, "recurrence successor not created", "task_id", taskID, "error", err)
	if m := g.core.metrics; m != nil {
		m.RecurrenceFailures.Add(ctx, 1)
	}
	return &RecurrenceError{TaskID: taskID, Err: err}
}

func (g *RecurrenceGenerator) spawned(ctx context.Context, successor *task.Task) {
	if successor == nil {
		return
	}
	slog.InfoContext(ctx, "recurrence successor created",
		"task_id", successor.ParentTaskID, "successor_id", successor.ID, "occurrence", successor.Occurrence)
	if m := g.core.metrics; m != nil {
		m.RecurrenceSpawned.Add(ctx, 1, metric.WithAttributes(attribute.String("tenant.id", successor.TenantID)))
	}
}
