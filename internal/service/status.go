package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/assignment"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tracking"
)

// StatusOptions qualifies an explicit task transition.
type StatusOptions struct {
	Notes    string // completion notes
	Override bool   // complete without notes
	Reason   string
}

// StatusCoordinator owns task-level status and binds it to the statuses of
// the task's assignments.
type StatusCoordinator struct {
	core       *core
	recurrence *RecurrenceGenerator
}

// Change applies an explicit transition to to. Entering a terminal status
// runs the recurrence generator in the same transaction; when only the
// spawn fails, the transition still commits and the returned error is a
// *RecurrenceError next to the updated task. A transition rejected because
// another writer changed the task after it was first read fails with
// domain.ErrConflict.
func (s *StatusCoordinator) Change(ctx context.Context, caller Caller, taskID string, to task.Status, opts StatusOptions) (*task.Task, error) {
	var (
		updated   *task.Task
		successor *task.Task
		spawnErr  error
		seen      int
	)
	if t, err := s.core.store.GetTask(ctx, caller.TenantID, taskID); err == nil {
		seen = t.Version
	}
	err := s.core.run(ctx, "change_status", caller, taskID, func(ctx context.Context, u *unit) error {
		t, err := u.loadTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := task.CheckTransition(t.Status, to, t.RequiresApproval); err != nil {
			return lostRace(err, t, seen)
		}
		list, err := u.tx.ListAssignments(ctx, caller.TenantID, taskID)
		if err != nil {
			return err
		}
		if err := task.CheckAssignments(to, assignment.Summarize(list)); err != nil {
			return lostRace(err, t, seen)
		}

		switch to {
		case task.StatusCompleted:
			if err := s.complete(ctx, u, t, list, opts); err != nil {
				return err
			}
		case task.StatusCancelled:
			if err := s.cancel(ctx, u, list, opts.Reason); err != nil {
				return err
			}
		}

		if err := s.transition(ctx, u, t, to, opts.Reason); err != nil {
			return err
		}
		updated = t

		if to.IsTerminal() {
			successor, spawnErr = s.spawn(ctx, u, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if spawnErr != nil {
		return updated, s.recurrence.failed(ctx, taskID, spawnErr)
	}
	s.recurrence.spawned(ctx, successor)
	return updated, nil
}

// lostRace reports a rejection as domain.ErrConflict when the task was
// written after the caller first read it at version seen. A retry sees the
// fresh state.
func lostRace(err error, t *task.Task, seen int) error {
	if seen == 0 || t.Version == seen {
		return err
	}
	return fmt.Errorf("task %s changed to %s concurrently (%v): %w", t.ID, t.Status, err, domain.ErrConflict)
}

// complete checks the completion prerequisites and completes every
// assignment that is not tracking.
func (s *StatusCoordinator) complete(ctx context.Context, u *unit, t *task.Task, list []assignment.Assignment, opts StatusOptions) error {
	if opts.Notes == "" && !opts.Override {
		return domain.Prerequisitef("completion requires notes or an explicit override")
	}
	for i := range list {
		if list[i].HasOpenSession() {
			return domain.Prerequisitef("employee %s has an open tracking session", list[i].EmployeeID)
		}
	}
	for i := range list {
		a := &list[i]
		if a.Status != assignment.StatusAssigned && a.Status != assignment.StatusStopped {
			continue
		}
		if err := transitionAssignment(ctx, u, a, assignment.StatusCompleted, history.ActionCompleted, ""); err != nil {
			return err
		}
	}
	at := u.at(t.UpdatedAt)
	t.CompletionDate = &at
	t.CompletionNotes = opts.Notes
	return nil
}

// cancel force-closes open sessions and cancels every non-terminal
// assignment.
func (s *StatusCoordinator) cancel(ctx context.Context, u *unit, list []assignment.Assignment, reason string) error {
	for i := range list {
		a := &list[i]
		if a.Status.IsTerminal() {
			continue
		}
		if a.HasOpenSession() {
			if err := forceStop(ctx, u, a, tracking.ReasonTaskCancelled); err != nil {
				return err
			}
		}
		a.CancelReason = assignment.CancelTaskCancelled
		if err := transitionAssignment(ctx, u, a, assignment.StatusCancelled, history.ActionCancelled, reason); err != nil {
			return err
		}
	}
	return nil
}

// transition stores the task in status to and records exactly one
// StatusChanged event for it.
func (s *StatusCoordinator) transition(ctx context.Context, u *unit, t *task.Task, to task.Status, reason string) error {
	prev := t.Status
	at := u.at(t.UpdatedAt)
	t.Status = to
	t.UpdatedAt = at
	if to == task.StatusInProgress && t.ActualStartDate == nil {
		t.ActualStartDate = &at
	}
	if err := u.tx.UpdateTask(ctx, t); err != nil {
		return err
	}
	return u.record(ctx, history.Event{
		TaskID:     t.ID,
		Action:     history.ActionStatusChanged,
		PrevStatus: string(prev),
		NewStatus:  string(to),
		Reason:     reason,
		At:         at,
	})
}

// spawn runs the recurrence generator in a savepoint so that its failure
// leaves the terminal transition intact.
func (s *StatusCoordinator) spawn(ctx context.Context, u *unit, t *task.Task) (*task.Task, error) {
	var successor *task.Task
	err := u.nested(ctx, func(ctx context.Context) error {
		var err error
		successor, err = s.recurrence.spawn(ctx, u, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return successor, nil
}

// Reconcile derives the task status from its assignments in its own unit,
// retrying on version conflicts. The change is attributed to the system.
// It never promotes a task to Completed.
func (s *StatusCoordinator) Reconcile(ctx context.Context, caller Caller, taskID string) (*task.Task, error) {
	system := caller.asSystem()
	var (
		t   *task.Task
		err error
	)
	for attempt := 0; ; attempt++ {
		t, err = s.reconcileOnce(ctx, system, taskID)
		if err == nil || !errors.Is(err, domain.ErrConflict) || attempt >= s.core.cfg.ConflictRetries {
			return t, err
		}
		slog.DebugContext(ctx, "reconcile conflict, retrying", "task_id", taskID, "attempt", attempt+1)
	}
}

func (s *StatusCoordinator) reconcileOnce(ctx context.Context, caller Caller, taskID string) (*task.Task, error) {
	var current *task.Task
	err := s.core.run(ctx, "reconcile", caller, taskID, func(ctx context.Context, u *unit) error {
		t, err := u.loadTask(ctx, taskID)
		if err != nil {
			return err
		}
		current = t
		if t.Status.IsTerminal() {
			return nil
		}
		list, err := u.tx.ListAssignments(ctx, caller.TenantID, taskID)
		if err != nil {
			return err
		}
		to, ok := task.Derive(t.Status, t.RequiresApproval, assignment.Summarize(list))
		if !ok {
			return nil
		}
		return s.transition(ctx, u, t, to, "derived from assignment statuses")
	})
	return current, err
}

// reconcileQuietly runs Reconcile after an assignment-level change has
// committed. A failure leaves the task status stale until the next change
// and is only logged.
func (s *StatusCoordinator) reconcileQuietly(ctx context.Context, caller Caller, taskID string) {
	if _, err := s.Reconcile(ctx, caller, taskID); err != nil {
		slog.WarnContext(ctx, "task status reconcile failed", "task_id", taskID, "error", err)
	}
}
