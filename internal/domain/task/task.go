// Package task defines the Task domain entity, its status lattice and
// recurrence arithmetic.
package task

import "time"

// Priority ranks the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Task is a unit of trackable work belonging to a tenant.
type Task struct {
	ID                 string      `json:"id"`
	TenantID           string      `json:"tenant_id"`
	TypeID             string      `json:"type_id,omitempty"`
	CostCenterID       string      `json:"cost_center_id"`
	Title              string      `json:"title"`
	Description        string      `json:"description,omitempty"`
	Priority           Priority    `json:"priority"`
	Status             Status      `json:"status"`
	RequiresApproval   bool        `json:"requires_approval"`
	EstimatedStartDate *time.Time  `json:"estimated_start_date,omitempty"`
	ActualStartDate    *time.Time  `json:"actual_start_date,omitempty"`
	DueDate            *time.Time  `json:"due_date,omitempty"`
	CompletionDate     *time.Time  `json:"completion_date,omitempty"`
	CompletionNotes    string      `json:"completion_notes,omitempty"`
	Recurrence         *Recurrence `json:"recurrence,omitempty"`
	Occurrence         int         `json:"occurrence"`
	ParentTaskID       string      `json:"parent_task_id,omitempty"`
	SuccessorID        string      `json:"successor_id,omitempty"` // recurrence-spawned marker
	RequestedBy        string      `json:"requested_by,omitempty"`
	Deleted            bool        `json:"deleted"`
	DeletedAt          *time.Time  `json:"deleted_at,omitempty"`
	Version            int         `json:"version"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a new task.
type CreateRequest struct {
	TypeID             string      `json:"type_id,omitempty"`
	CostCenterID       string      `json:"cost_center_id"`
	Title              string      `json:"title"`
	Description        string      `json:"description,omitempty"`
	Priority           Priority    `json:"priority,omitempty"`
	EstimatedStartDate *time.Time  `json:"estimated_start_date,omitempty"`
	DueDate            *time.Time  `json:"due_date,omitempty"`
	Recurrence         *Recurrence `json:"recurrence,omitempty"`
}

// UpdateRequest is a partial update of task metadata. Nil fields are left
// untouched. TenantID, ID and Status are accepted only so that attempts to
// change them can be rejected explicitly.
type UpdateRequest struct {
	ID                 *string     `json:"id,omitempty"`
	TenantID           *string     `json:"tenant_id,omitempty"`
	Status             *string     `json:"status,omitempty"`
	TypeID             *string     `json:"type_id,omitempty"`
	CostCenterID       *string     `json:"cost_center_id,omitempty"`
	Title              *string     `json:"title,omitempty"`
	Description        *string     `json:"description,omitempty"`
	Priority           *Priority   `json:"priority,omitempty"`
	EstimatedStartDate *time.Time  `json:"estimated_start_date,omitempty"`
	DueDate            *time.Time  `json:"due_date,omitempty"`
	Recurrence         *Recurrence `json:"recurrence,omitempty"`
	ClearRecurrence    bool        `json:"clear_recurrence,omitempty"`
}

// ListFilter narrows ListTasks results.
type ListFilter struct {
	Status         Status `json:"status,omitempty"`
	CostCenterID   string `json:"cost_center_id,omitempty"`
	ParentTaskID   string `json:"parent_task_id,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	c := *t
	c.EstimatedStartDate = cloneTime(t.EstimatedStartDate)
	c.ActualStartDate = cloneTime(t.ActualStartDate)
	c.DueDate = cloneTime(t.DueDate)
	c.CompletionDate = cloneTime(t.CompletionDate)
	c.DeletedAt = cloneTime(t.DeletedAt)
	if t.Recurrence != nil {
		r := t.Recurrence.clone()
		c.Recurrence = &r
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
