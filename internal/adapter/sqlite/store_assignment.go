package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/assignment"
)

const assignmentColumns = `id, tenant_id, task_id, employee_id, role, status, tracker_state, open_since,
	tracked_seconds, estimated_hours, actual_hours, hourly_rate, completion_note, cancel_reason,
	version, created_at, updated_at`

func scanAssignment(row scannable) (assignment.Assignment, error) {
	var (
		a                      assignment.Assignment
		openRaw                sql.NullString
		rate                   sql.NullFloat64
		createdRaw, updatedRaw string
	)
	err := row.Scan(&a.ID, &a.TenantID, &a.TaskID, &a.EmployeeID, &a.Role, &a.Status, &a.TrackerState,
		&openRaw, &a.TrackedSeconds, &a.EstimatedHours, &a.ActualHours, &rate,
		&a.CompletionNote, &a.CancelReason, &a.Version, &createdRaw, &updatedRaw)
	if err != nil {
		return a, err
	}
	if rate.Valid {
		v := rate.Float64
		a.HourlyRate = &v
	}
	if a.OpenSince, err = parseTimePtr(openRaw); err != nil {
		return a, err
	}
	if a.CreatedAt, err = parseTime(createdRaw); err != nil {
		return a, err
	}
	if a.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return a, err
	}
	return a, nil
}

func (s *Store) CreateAssignment(ctx context.Context, a *assignment.Assignment) error {
	if a.Version == 0 {
		a.Version = 1
	}
	_, err := s.exec(ctx,
		`INSERT INTO assignments (`+assignmentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TenantID, a.TaskID, a.EmployeeID, string(a.Role), string(a.Status), string(a.TrackerState),
		formatTimePtr(a.OpenSince), a.TrackedSeconds, a.EstimatedHours, a.ActualHours, nullableFloat(a.HourlyRate),
		a.CompletionNote, a.CancelReason, a.Version, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err, "assignments.task_id") {
			return fmt.Errorf("assign employee %s to task %s: %w", a.EmployeeID, a.TaskID, domain.ErrDuplicateAssignment)
		}
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, tenantID, taskID, employeeID string) (*assignment.Assignment, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE task_id = ? AND employee_id = ? AND tenant_id = ?`, taskID, employeeID, tenantID)
	a, err := scanAssignment(row)
	if err != nil {
		return nil, notFoundWrap(err, "get assignment of %s on task %s", employeeID, taskID)
	}
	return &a, nil
}

func (s *Store) ListAssignments(ctx context.Context, tenantID, taskID string) ([]assignment.Assignment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE task_id = ? AND tenant_id = ? ORDER BY created_at ASC, id ASC`, taskID, tenantID)
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
	res, err := s.exec(ctx,
		`UPDATE assignments SET role = ?, status = ?, tracker_state = ?, open_since = ?,
		   tracked_seconds = ?, estimated_hours = ?, actual_hours = ?, hourly_rate = ?,
		   completion_note = ?, cancel_reason = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND tenant_id = ? AND version = ?`,
		string(a.Role), string(a.Status), string(a.TrackerState), formatTimePtr(a.OpenSince),
		a.TrackedSeconds, a.EstimatedHours, a.ActualHours, nullableFloat(a.HourlyRate),
		a.CompletionNote, a.CancelReason, formatTime(a.UpdatedAt),
		a.ID, a.TenantID, a.Version)
	if err := execVersioned(res, err, "update assignment %s", a.ID); err != nil {
		return err
	}
	a.Version++
	return nil
}
