package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/assignment"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tracking"
)

// TrackOptions carries the optional fields of a tracking entry.
type TrackOptions struct {
	Location string
	Notes    string
}

var trackedActions = map[tracking.Action]history.Action{
	tracking.ActionStart:  history.ActionStarted,
	tracking.ActionPause:  history.ActionPaused,
	tracking.ActionResume: history.ActionResumed,
	tracking.ActionStop:   history.ActionStopped,
}

// TimeTracker records start/pause/resume/stop entries per assignment and
// keeps the assignment's effort totals.
type TimeTracker struct {
	core   *core
	status *StatusCoordinator
}

// Track applies action to the employee's tracker on the task. The entry is
// stamped with the server clock. Rejected actions write nothing.
func (tt *TimeTracker) Track(ctx context.Context, caller Caller, taskID, employeeID string, action tracking.Action, opts TrackOptions) (*tracking.Entry, error) {
	if !action.Valid() {
		return nil, domain.Validationf("unknown tracking action %q", action)
	}

	var (
		entry      *tracking.Entry
		closedMins int64
	)
	err := tt.core.run(ctx, "track_"+string(action), caller, taskID, func(ctx context.Context, u *unit) error {
		t, err := u.shareTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := task.WorkAllowed(t.Status, t.RequiresApproval); err != nil {
			return err
		}
		a, err := u.tx.GetAssignment(ctx, caller.TenantID, taskID, employeeID)
		if err != nil {
			return err
		}
		if a.Status.IsTerminal() {
			return &domain.TransitionError{Entity: "assignment", From: string(a.Status), To: string(action)}
		}
		next, err := tracking.Next(a.TrackerState, action)
		if err != nil {
			return err
		}

		e := &tracking.Entry{
			TaskID:   taskID,
			Action:   action,
			Location: opts.Location,
			Notes:    opts.Notes,
		}
		sum, err := appendEntry(ctx, u, a, e)
		if err != nil {
			return err
		}
		if sum.State != next {
			return fmt.Errorf("assignment %s: cached tracker state %s disagrees with its entries: %w",
				a.ID, a.TrackerState, domain.ErrConflict)
		}

		closedMins = sum.Minutes() - a.AccumulatedMinutes()
		prev := a.Status
		a.ApplyTracking(next, sum)
		a.Status = assignment.StatusForTracker(next)
		a.UpdatedAt = e.At
		if err := u.tx.UpdateAssignment(ctx, a); err != nil {
			return err
		}
		entry = e
		return u.record(ctx, history.Event{
			TaskID:       taskID,
			AssignmentID: a.ID,
			Action:       trackedActions[action],
			PrevStatus:   string(prev),
			NewStatus:    string(a.Status),
			Reason:       opts.Notes,
			At:           e.At,
		})
	})
	if err != nil {
		return nil, err
	}
	if m := tt.core.metrics; m != nil && closedMins > 0 {
		m.TrackedMinutes.Add(ctx, closedMins, metric.WithAttributes(attribute.String("tenant.id", caller.TenantID)))
	}
	tt.status.reconcileQuietly(ctx, caller, taskID)
	return entry, nil
}

// Entries returns the employee's tracking entries on the task, oldest first.
func (tt *TimeTracker) Entries(ctx context.Context, tenantID, taskID, employeeID string) ([]tracking.Entry, error) {
	a, err := tt.core.store.GetAssignment(ctx, tenantID, taskID, employeeID)
	if err != nil {
		return nil, err
	}
	return tt.core.store.ListEntries(ctx, tenantID, a.ID)
}

// Summary replays the employee's entries into closed effort and the start
// of a running interval, if any.
func (tt *TimeTracker) Summary(ctx context.Context, tenantID, taskID, employeeID string) (tracking.Summary, error) {
	entries, err := tt.Entries(ctx, tenantID, taskID, employeeID)
	if err != nil {
		return tracking.Summary{}, err
	}
	return tracking.Replay(entries)
}

// forceStop closes an open session with a Stop entry tagged reason inside
// the cancelling unit.
func forceStop(ctx context.Context, u *unit, a *assignment.Assignment, reason string) error {
	e := &tracking.Entry{TaskID: a.TaskID, Action: tracking.ActionStop, Reason: reason}
	sum, err := appendEntry(ctx, u, a, e)
	if err != nil {
		return err
	}
	prev := a.Status
	a.ApplyTracking(sum.State, sum)
	a.Status = assignment.StatusStopped
	a.UpdatedAt = e.At
	if err := u.tx.UpdateAssignment(ctx, a); err != nil {
		return err
	}
	return u.record(ctx, history.Event{
		TaskID:       a.TaskID,
		AssignmentID: a.ID,
		Action:       history.ActionStopped,
		PrevStatus:   string(prev),
		NewStatus:    string(a.Status),
		Reason:       reason,
		At:           e.At,
	})
}

// appendEntry stamps e no earlier than the assignment's last change, replays
// it after the stored entries and appends it.
func appendEntry(ctx context.Context, u *unit, a *assignment.Assignment, e *tracking.Entry) (tracking.Summary, error) {
	entries, err := u.tx.ListEntries(ctx, u.caller.TenantID, a.ID)
	if err != nil {
		return tracking.Summary{}, err
	}
	floors := []time.Time{a.UpdatedAt}
	if n := len(entries); n > 0 {
		floors = append(floors, entries[n-1].At)
	}
	e.ID = newID()
	e.TenantID = u.caller.TenantID
	e.AssignmentID = a.ID
	e.At = u.at(floors...)

	sum, err := tracking.Replay(append(entries, *e))
	if err != nil {
		return sum, err
	}
	if err := u.tx.AppendEntry(ctx, e); err != nil {
		return sum, err
	}
	return sum, nil
}
