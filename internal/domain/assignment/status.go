package assignment

import (
	"slices"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tracking"
)

// Status is the assignment-level state.
type Status string

const (
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusStopped    Status = "stopped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusAssigned:   {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusPaused, StatusStopped, StatusCancelled},
	StatusPaused:     {StatusInProgress, StatusStopped, StatusCancelled},
	StatusStopped:    {StatusInProgress, StatusCompleted, StatusCancelled},
}

// IsTerminal reports whether s is Completed or Cancelled.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CheckTransition validates from → to against the assignment lattice.
func CheckTransition(from, to Status) error {
	if !slices.Contains(transitions[from], to) {
		return &domain.TransitionError{Entity: "assignment", From: string(from), To: string(to)}
	}
	return nil
}

// StatusForTracker maps a tracker state to the assignment status it implies.
// Stopped maps to Stopped; whether the work is complete is decided by an
// explicit completion.
func StatusForTracker(s tracking.State) Status {
	switch s {
	case tracking.StateRunning:
		return StatusInProgress
	case tracking.StatePaused:
		return StatusPaused
	case tracking.StateStopped:
		return StatusStopped
	default:
		return StatusAssigned
	}
}

// Summarize counts the assignments by status for task-level derivation.
func Summarize(list []Assignment) task.AssignmentSummary {
	var sum task.AssignmentSummary
	for i := range list {
		switch list[i].Status {
		case StatusAssigned:
			sum.Assigned++
		case StatusInProgress:
			sum.InProgress++
		case StatusPaused:
			sum.Paused++
		case StatusStopped:
			sum.Stopped++
		case StatusCompleted:
			sum.Completed++
		}
	}
	return sum
}
