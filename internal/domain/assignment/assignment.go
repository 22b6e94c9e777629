// Package assignment defines the relationship between a task and one
// employee, its status lattice and tracked effort.
package assignment

import (
	"time"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/tracking"
)

// Role is the part an employee plays on a task.
type Role string

const (
	RolePrincipal  Role = "principal"
	RoleAuxiliary  Role = "auxiliary"
	RoleSupervisor Role = "supervisor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePrincipal || r == RoleAuxiliary || r == RoleSupervisor
}

// Cancel reasons stored on cancelled assignments.
const (
	CancelUnassigned    = "unassigned"
	CancelTaskCancelled = "task_cancelled"
)

// Assignment binds one employee to one task.
type Assignment struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	TaskID         string         `json:"task_id"`
	EmployeeID     string         `json:"employee_id"`
	Role           Role           `json:"role"`
	Status         Status         `json:"status"`
	TrackerState   tracking.State `json:"tracker_state"`
	OpenSince      *time.Time     `json:"open_since,omitempty"`
	TrackedSeconds int64          `json:"tracked_seconds"`
	EstimatedHours float64        `json:"estimated_hours"`
	ActualHours    float64        `json:"actual_hours"`
	HourlyRate     *float64       `json:"hourly_rate,omitempty"`
	CompletionNote string         `json:"completion_note,omitempty"`
	CancelReason   string         `json:"cancel_reason,omitempty"`
	Version        int            `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// AccumulatedMinutes is the closed-interval effort in whole minutes.
func (a *Assignment) AccumulatedMinutes() int64 {
	return a.TrackedSeconds / 60
}

// HasOpenSession reports whether a tracking interval is running or paused.
func (a *Assignment) HasOpenSession() bool {
	return a.TrackerState.Open()
}

// ApplyTracking stores the tracker state reached by a tracked action along
// with the refreshed effort totals.
func (a *Assignment) ApplyTracking(state tracking.State, sum tracking.Summary) {
	a.TrackerState = state
	a.TrackedSeconds = int64(sum.Closed / time.Second)
	a.ActualHours = sum.Closed.Hours()
	a.OpenSince = nil
	if sum.OpenSince != nil {
		v := *sum.OpenSince
		a.OpenSince = &v
	}
}

// CreateRequest holds the input of AssignmentManager.Assign.
type CreateRequest struct {
	EmployeeID     string   `json:"employee_id"`
	Role           Role     `json:"role"`
	EstimatedHours float64  `json:"estimated_hours"`
	HourlyRate     *float64 `json:"hourly_rate,omitempty"`
}

// Validate checks the request syntactically. Employee existence is checked
// against the directory by the caller.
func (r *CreateRequest) Validate() error {
	if r.EmployeeID == "" {
		return domain.Validationf("employee_id is required")
	}
	if r.Role == "" {
		r.Role = RoleAuxiliary
	}
	if !r.Role.Valid() {
		return domain.Validationf("unknown assignment role %q", r.Role)
	}
	if r.EstimatedHours < 0 {
		return domain.Validationf("estimated_hours must be >= 0")
	}
	if r.HourlyRate != nil && *r.HourlyRate < 0 {
		return domain.Validationf("hourly_rate must be >= 0")
	}
	return nil
}

// Template is the part of an assignment a recurring successor inherits.
type Template struct {
	EmployeeID     string
	Role           Role
	EstimatedHours float64
	HourlyRate     *float64
}

// Templates returns the assignment template of a finished task. Assignments
// removed through an explicit unassign are not carried over.
func Templates(list []Assignment) []Template {
	var out []Template
	for _, a := range list {
		if a.Status == StatusCancelled && a.CancelReason == CancelUnassigned {
			continue
		}
		out = append(out, Template{
			EmployeeID:     a.EmployeeID,
			Role:           a.Role,
			EstimatedHours: a.EstimatedHours,
			HourlyRate:     a.HourlyRate,
		})
	}
	return out
}
