package task

import (
	"slices"

	"github.com/Strob0t/TaskForge/internal/domain"
)

// Status represents the task-level state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusStopped    Status = "stopped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// transitions is the task lattice. Cancellation is reachable from every
// non-terminal state; Approved and Rejected only exist for task types that
// require approval.
var transitions = map[Status][]Status{
	StatusPending:    {StatusApproved, StatusRejected, StatusInProgress, StatusCancelled},
	StatusApproved:   {StatusInProgress, StatusCancelled},
	StatusRejected:   {StatusPending, StatusCancelled},
	StatusInProgress: {StatusPaused, StatusStopped, StatusCancelled},
	StatusPaused:     {StatusInProgress, StatusStopped, StatusCompleted, StatusCancelled},
	StatusStopped:    {StatusInProgress, StatusCompleted, StatusCancelled},
}

// Valid reports whether s is a known task status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusInProgress,
		StatusPaused, StatusStopped, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is Completed or Cancelled.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CheckTransition validates from → to against the lattice. It returns a
// *domain.TransitionError for edges outside the lattice and
// ErrPrerequisiteNotMet when approval is required but missing.
func CheckTransition(from, to Status, requiresApproval bool) error {
	if !to.Valid() {
		return domain.Validationf("unknown task status %q", to)
	}
	if !slices.Contains(transitions[from], to) {
		return &domain.TransitionError{Entity: "task", From: string(from), To: string(to)}
	}
	if (to == StatusApproved || to == StatusRejected) && !requiresApproval {
		return &domain.TransitionError{Entity: "task", From: string(from), To: string(to)}
	}
	if from == StatusPending && to == StatusInProgress && requiresApproval {
		return domain.Prerequisitef("task requires approval before work can start")
	}
	return nil
}

// CheckAssignments validates an explicit move to to against the task's
// assignments. A task stays at least InProgress while anyone is tracking,
// and cannot be Stopped while a session is paused.
func CheckAssignments(to Status, sum AssignmentSummary) error {
	switch to {
	case StatusPaused, StatusStopped:
		if sum.InProgress > 0 {
			return domain.Prerequisitef("%d assignment(s) still in progress", sum.InProgress)
		}
		if to == StatusStopped && sum.Paused > 0 {
			return domain.Prerequisitef("%d assignment(s) still paused", sum.Paused)
		}
	}
	return nil
}

// WorkAllowed reports whether assignments may start tracking time while the
// task is in status s.
func WorkAllowed(s Status, requiresApproval bool) error {
	switch {
	case s.IsTerminal():
		return &domain.TransitionError{Entity: "task", From: string(s), To: string(StatusInProgress)}
	case s == StatusRejected:
		return domain.Prerequisitef("task was rejected")
	case s == StatusPending && requiresApproval:
		return domain.Prerequisitef("task requires approval before work can start")
	}
	return nil
}

// AssignmentSummary counts assignments by their assignment-level status.
// Cancelled assignments are excluded from every count.
type AssignmentSummary struct {
	Assigned   int
	InProgress int
	Paused     int
	Stopped    int
	Completed  int
}

// Active returns the number of non-cancelled assignments.
func (s AssignmentSummary) Active() int {
	return s.Assigned + s.InProgress + s.Paused + s.Stopped + s.Completed
}

// AllCompleted reports whether every non-cancelled assignment is Completed.
func (s AssignmentSummary) AllCompleted() bool {
	return s.Active() > 0 && s.Completed == s.Active()
}

// HasOpenSessions reports whether any assignment is tracking or paused.
func (s AssignmentSummary) HasOpenSessions() bool {
	return s.InProgress > 0 || s.Paused > 0
}

// Derive computes the implicit task status from assignment statuses. It never
// promotes to Completed; a task whose assignments all completed before any
// tracking is moved to Stopped so that it can be completed. The second
// return value is false when the current status should be kept.
func Derive(current Status, requiresApproval bool, sum AssignmentSummary) (Status, bool) {
	var target Status
	switch {
	case sum.InProgress > 0:
		target = StatusInProgress
	case sum.Paused > 0:
		if current != StatusInProgress {
			return current, false
		}
		target = StatusPaused
	case sum.AllCompleted() && (current == StatusApproved || current == StatusPending && !requiresApproval):
		// Pending/Approved → Stopped is outside the explicit lattice.
		return StatusStopped, true
	case sum.Active() > 0 && sum.Stopped+sum.Completed == sum.Active():
		if current != StatusInProgress && current != StatusPaused {
			return current, false
		}
		target = StatusStopped
	default:
		return current, false
	}
	if target == current {
		return current, false
	}
	if CheckTransition(current, target, requiresApproval) != nil {
		return current, false
	}
	return target, true
}
