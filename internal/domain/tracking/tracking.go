// Package tracking holds the per-assignment time-tracking state machine and
// the interval arithmetic over its entries.
package tracking

import (
	"fmt"
	"time"

	"github.com/Strob0t/TaskForge/internal/domain"
)

// State is the tracker state of one assignment.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateStopped    State = "stopped"
)

// Open reports whether an interval is running or suspended.
func (s State) Open() bool {
	return s == StateRunning || s == StatePaused
}

// Action is a tracked event.
type Action string

const (
	ActionStart  Action = "start"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionStop   Action = "stop"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionStart, ActionPause, ActionResume, ActionStop:
		return true
	default:
		return false
	}
}

// ReasonTaskCancelled tags the Stop entries forced by a task cancellation.
const ReasonTaskCancelled = "TaskCancelled"

var table = map[State]map[Action]State{
	StateNotStarted: {ActionStart: StateRunning},
	StateRunning:    {ActionPause: StatePaused, ActionStop: StateStopped},
	StatePaused:     {ActionResume: StateRunning, ActionStop: StateStopped},
	StateStopped:    {ActionStart: StateRunning},
}

// Next returns the state reached by applying action in state s, or a
// *domain.TransitionError when the table has no such edge.
func Next(s State, action Action) (State, error) {
	if !action.Valid() {
		return s, domain.Validationf("unknown tracking action %q", action)
	}
	next, ok := table[s][action]
	if !ok {
		return s, &domain.TransitionError{Entity: "tracker", From: string(s), To: string(action)}
	}
	return next, nil
}

// Entry is one append-only tracking record.
type Entry struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	TaskID       string    `json:"task_id"`
	AssignmentID string    `json:"assignment_id"`
	Action       Action    `json:"action"`
	At           time.Time `json:"at"`
	Location     string    `json:"location,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// Summary is the result of replaying an assignment's entries.
type Summary struct {
	State     State         `json:"state"`
	Closed    time.Duration `json:"closed"`
	OpenSince *time.Time    `json:"open_since,omitempty"`
}

// Minutes returns the closed effort in whole minutes.
func (s Summary) Minutes() int64 {
	return int64(s.Closed / time.Minute)
}

// Replay folds entries (oldest first) through the transition table. Only
// closed intervals contribute to Closed; a running interval is reported via
// OpenSince.
func Replay(entries []Entry) (Summary, error) {
	sum := Summary{State: StateNotStarted}
	var openedAt time.Time
	for i, e := range entries {
		next, err := Next(sum.State, e.Action)
		if err != nil {
			return sum, fmt.Errorf("replay entry %d: %w", i, err)
		}
		switch e.Action {
		case ActionStart, ActionResume:
			openedAt = e.At
			at := e.At
			sum.OpenSince = &at
		case ActionPause, ActionStop:
			if sum.State == StateRunning {
				sum.Closed += e.At.Sub(openedAt)
			}
			sum.OpenSince = nil
		}
		sum.State = next
	}
	return sum, nil
}

// Step applies one new entry to a previous summary. It is equivalent to
// replaying the full history with e appended.
func Step(prev Summary, e Entry) (Summary, error) {
	next, err := Next(prev.State, e.Action)
	if err != nil {
		return prev, err
	}
	sum := prev
	switch e.Action {
	case ActionStart, ActionResume:
		at := e.At
		sum.OpenSince = &at
	case ActionPause, ActionStop:
		if prev.State == StateRunning && prev.OpenSince != nil {
			sum.Closed += e.At.Sub(*prev.OpenSince)
		}
		sum.OpenSince = nil
	}
	sum.State = next
	return sum, nil
}
