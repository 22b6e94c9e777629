package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/assignment"
)

const assignmentColumns = `id, tenant_id, task_id, employee_id, role, status, tracker_state, open_since,
	tracked_seconds, estimated_hours, actual_hours, hourly_rate, completion_note, cancel_reason,
	version, created_at, updated_at`

func scanAssignment(row scannable) (assignment.Assignment, error) {
	var a assignment.Assignment
	err := row.Scan(&a.ID, &a.TenantID, &a.TaskID, &a.EmployeeID, &a.Role, &a.Status, &a.TrackerState,
		&a.OpenSince, &a.TrackedSeconds, &a.EstimatedHours, &a.ActualHours, &a.HourlyRate,
		&a.CompletionNote, &a.CancelReason, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	a.OpenSince = utcPtr(a.OpenSince)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func (s *Store) CreateAssignment(ctx context.Context, a *assignment.Assignment) error {
	if a.Version == 0 {
		a.Version = 1
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO assignments (`+assignmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		a.ID, a.TenantID, a.TaskID, a.EmployeeID, string(a.Role), string(a.Status), string(a.TrackerState),
		a.OpenSince, a.TrackedSeconds, a.EstimatedHours, a.ActualHours, a.HourlyRate,
		a.CompletionNote, a.CancelReason, a.Version, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "assignments_task_employee_key") {
			return fmt.Errorf("assign employee %s to task %s: %w", a.EmployeeID, a.TaskID, domain.ErrDuplicateAssignment)
		}
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, tenantID, taskID, employeeID string) (*assignment.Assignment, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE task_id = $1 AND employee_id = $2 AND tenant_id = $3`, taskID, employeeID, tenantID)
	a, err := scanAssignment(row)
	if err != nil {
		return nil, notFoundWrap(err, "get assignment of %s on task %s", employeeID, taskID)
	}
	return &a, nil
}

func (s *Store) ListAssignments(ctx context.Context, tenantID, taskID string) ([]assignment.Assignment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE task_id = $1 AND tenant_id = $2 ORDER BY created_at ASC, id ASC`, taskID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var list []assignment.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (s *Store) UpdateAssignment(ctx context.Context, a *assignment.Assignment) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE assignments SET role = $3, status = $4, tracker_state = $5, open_since = $6,
		   tracked_seconds = $7, estimated_hours = $8, actual_hours = $9, hourly_rate = $10,
		   completion_note = $11, cancel_reason = $12, updated_at = $13, version = version + 1
		 WHERE id = $1 AND tenant_id = $2 AND version = $14`,
		a.ID, a.TenantID, string(a.Role), string(a.Status), string(a.TrackerState), a.OpenSince,
		a.TrackedSeconds, a.EstimatedHours, a.ActualHours, a.HourlyRate,
		a.CompletionNote, a.CancelReason, a.UpdatedAt, a.Version)
	if err := execVersioned(tag, err, "update assignment %s", a.ID); err != nil {
		return err
	}
	a.Version++
	return nil
}
