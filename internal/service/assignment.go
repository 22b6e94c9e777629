package service

import (
	"context"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/assignment"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/tracking"
)

// AssignmentManager owns the employees assigned to a task and each
// assignment's status.
type AssignmentManager struct {
	core   *core
	status *StatusCoordinator
}

// Assign binds an active employee to a live, non-terminal task. A second
// assignment of the same employee fails with domain.ErrDuplicateAssignment
// whatever the first one's status.
func (m *AssignmentManager) Assign(ctx context.Context, caller Caller, taskID string, req assignment.CreateRequest) (*assignment.Assignment, error) {
	if err := caller.validate(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := m.core.resolveEmployee(ctx, caller.TenantID, req.EmployeeID); err != nil {
		return nil, err
	}

	var created *assignment.Assignment
	err := m.core.run(ctx, "assign", caller, taskID, func(ctx context.Context, u *unit) error {
		t, err := u.shareTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t.Status.IsTerminal() {
			return domain.Prerequisitef("task %s is %s", taskID, t.Status)
		}
		a := &assignment.Assignment{
			ID:             newID(),
			TenantID:       caller.TenantID,
			TaskID:         taskID,
			EmployeeID:     req.EmployeeID,
			Role:           req.Role,
			Status:         assignment.StatusAssigned,
			TrackerState:   tracking.StateNotStarted,
			EstimatedHours: req.EstimatedHours,
			HourlyRate:     req.HourlyRate,
			CreatedAt:      u.now,
			UpdatedAt:      u.now,
		}
		if err := u.tx.CreateAssignment(ctx, a); err != nil {
			return err
		}
		created = a
		return u.record(ctx, history.Event{
			TaskID:       taskID,
			AssignmentID: a.ID,
			Action:       history.ActionAssigned,
			NewStatus:    string(a.Status),
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Unassign cancels the employee's assignment. It fails with
// domain.ErrConflict while a tracking session is open.
func (m *AssignmentManager) Unassign(ctx context.Context, caller Caller, taskID, employeeID, reason string) error {
	err := m.core.run(ctx, "unassign", caller, taskID, func(ctx context.Context, u *unit) error {
		if _, err := u.shareTask(ctx, taskID); err != nil {
			return err
		}
		a, err := u.tx.GetAssignment(ctx, caller.TenantID, taskID, employeeID)
		if err != nil {
			return err
		}
		if a.HasOpenSession() {
			return fmt.Errorf("assignment of %s has an open tracking session: %w", employeeID, domain.ErrConflict)
		}
		a.CancelReason = assignment.CancelUnassigned
		return transitionAssignment(ctx, u, a, assignment.StatusCancelled, history.ActionUnassigned, reason)
	})
	if err != nil {
		return err
	}
	m.status.reconcileQuietly(ctx, caller, taskID)
	return nil
}

// Complete marks the employee's work on the task as done. Only assignments
// that are not tracking (Assigned or Stopped) can complete.
func (m *AssignmentManager) Complete(ctx context.Context, caller Caller, taskID, employeeID, note string) (*assignment.Assignment, error) {
	var done *assignment.Assignment
	err := m.core.run(ctx, "complete_assignment", caller, taskID, func(ctx context.Context, u *unit) error {
		t, err := u.shareTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t.Status.IsTerminal() {
			return &domain.TransitionError{Entity: "task", From: string(t.Status), To: "complete_assignment"}
		}
		a, err := u.tx.GetAssignment(ctx, caller.TenantID, taskID, employeeID)
		if err != nil {
			return err
		}
		done = a
		a.CompletionNote = note
		return transitionAssignment(ctx, u, a, assignment.StatusCompleted, history.ActionCompleted, "")
	})
	if err != nil {
		return nil, err
	}
	m.status.reconcileQuietly(ctx, caller, taskID)
	return done, nil
}

// transitionAssignment moves a to status to, stores it and records action.
func transitionAssignment(ctx context.Context, u *unit, a *assignment.Assignment, to assignment.Status, action history.Action, reason string) error {
	if err := assignment.CheckTransition(a.Status, to); err != nil {
		return err
	}
	prev := a.Status
	a.Status = to
	a.UpdatedAt = u.at(a.UpdatedAt)
	if err := u.tx.UpdateAssignment(ctx, a); err != nil {
		return err
	}
	return u.record(ctx, history.Event{
		TaskID:       a.TaskID,
		AssignmentID: a.ID,
		Action:       action,
		PrevStatus:   string(prev),
		NewStatus:    string(to),
		Reason:       reason,
		At:           a.UpdatedAt,
	})
}

// Status returns the assignment-level status of the employee on the task.
func (m *AssignmentManager) Status(ctx context.Context, tenantID, taskID, employeeID string) (assignment.Status, error) {
	a, err := m.core.store.GetAssignment(ctx, tenantID, taskID, employeeID)
	if err != nil {
		return "", err
	}
	return a.Status, nil
}

// Get returns the employee's assignment on the task.
func (m *AssignmentManager) Get(ctx context.Context, tenantID, taskID, employeeID string) (*assignment.Assignment, error) {
	return m.core.store.GetAssignment(ctx, tenantID, taskID, employeeID)
}

// List returns every assignment of the task, cancelled ones included.
func (m *AssignmentManager) List(ctx context.Context, tenantID, taskID string) ([]assignment.Assignment, error) {
	if _, err := m.core.store.GetTask(ctx, tenantID, taskID); err != nil {
		return nil, err
	}
	return m.core.store.ListAssignments(ctx, tenantID, taskID)
}
