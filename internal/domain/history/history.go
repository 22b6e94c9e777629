// Package history defines the append-only audit event and the projection
// rebuilt from it.
package history

import (
	"time"

	"github.com/Strob0t/TaskForge/internal/domain"
)

// Action identifies what a history event records.
type Action string

const (
	ActionCreated       Action = "created"
	ActionUpdated       Action = "updated"
	ActionDeleted       Action = "deleted"
	ActionAssigned      Action = "assigned"
	ActionUnassigned    Action = "unassigned"
	ActionStatusChanged Action = "status_changed"
	ActionStarted       Action = "started"
	ActionPaused        Action = "paused"
	ActionResumed       Action = "resumed"
	ActionStopped       Action = "stopped"
	ActionApproved      Action = "approved"
	ActionRejected      Action = "rejected"
	ActionCompleted     Action = "completed"
	ActionCancelled     Action = "cancelled"
	ActionPostponed     Action = "postponed"
)

// Actions lists every action in declaration order.
var Actions = []Action{
	ActionCreated, ActionUpdated, ActionDeleted, ActionAssigned, ActionUnassigned,
	ActionStatusChanged, ActionStarted, ActionPaused, ActionResumed, ActionStopped,
	ActionApproved, ActionRejected, ActionCompleted, ActionCancelled, ActionPostponed,
}

// ActorType distinguishes who caused an event.
type ActorType string

const (
	ActorUser     ActorType = "user"
	ActorEmployee ActorType = "employee"
	ActorSystem   ActorType = "system"
)

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id"`
}

// System is the actor recorded for engine-initiated changes such as
// recurrence spawns and derived status transitions.
var System = Actor{Type: ActorSystem, ID: "system"}

// Event is an immutable audit record. Seq is assigned by the store and
// orders events of the same timestamp.
type Event struct {
	ID           string               `json:"id"`
	Seq          int64                `json:"seq"`
	TenantID     string               `json:"tenant_id"`
	TaskID       string               `json:"task_id"`
	AssignmentID string               `json:"assignment_id,omitempty"`
	ActorType    ActorType            `json:"actor_type"`
	ActorID      string               `json:"actor_id"`
	Action       Action               `json:"action"`
	PrevStatus   string               `json:"prev_status,omitempty"`
	NewStatus    string               `json:"new_status,omitempty"`
	Reason       string               `json:"reason,omitempty"`
	Changes      []domain.FieldChange `json:"changes,omitempty"`
	RequestID    string               `json:"request_id,omitempty"`
	At           time.Time            `json:"at"`
}

// AssignmentScoped reports whether the event describes an assignment-level
// change rather than a task-level one.
func (e *Event) AssignmentScoped() bool {
	return e.AssignmentID != ""
}

// Cursor marks a position in a task's event log. Events are ordered by
// (At, Seq); the zero Cursor starts at the beginning.
type Cursor struct {
	At  time.Time `json:"at"`
	Seq int64     `json:"seq"`
}

// CursorOf returns the cursor positioned at e.
func CursorOf(e *Event) Cursor {
	return Cursor{At: e.At, Seq: e.Seq}
}
