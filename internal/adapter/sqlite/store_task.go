package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/port/database"
)

const taskColumns = `id, tenant_id, type_id, cost_center_id, title, description, priority, status,
	requires_approval, estimated_start_date, actual_start_date, due_date, completion_date,
	completion_notes, recurrence, occurrence, parent_task_id, recurrence_spawned_id, requested_by,
	deleted, deleted_at, version, created_at, updated_at`

func scanTask(row scannable) (task.Task, error) {
	var (
		t                                     task.Task
		typeID, parentID, successorID, recRaw sql.NullString
		startRaw, actualRaw, dueRaw, doneRaw  sql.NullString
		deletedRaw                            sql.NullString
		createdRaw, updatedRaw                string
	)
	err := row.Scan(&t.ID, &t.TenantID, &typeID, &t.CostCenterID, &t.Title, &t.Description,
		&t.Priority, &t.Status, &t.RequiresApproval, &startRaw, &actualRaw,
		&dueRaw, &doneRaw, &t.CompletionNotes, &recRaw, &t.Occurrence,
		&parentID, &successorID, &t.RequestedBy, &t.Deleted, &deletedRaw, &t.Version,
		&createdRaw, &updatedRaw)
	if err != nil {
		return t, err
	}
	t.TypeID = typeID.String
	t.ParentTaskID = parentID.String
	t.SuccessorID = successorID.String
	if recRaw.String != "" {
		var rec task.Recurrence
		if err := json.Unmarshal([]byte(recRaw.String), &rec); err != nil {
			return t, fmt.Errorf("decode recurrence of task %s: %w", t.ID, err)
		}
		t.Recurrence = &rec
	}

	if t.EstimatedStartDate, err = parseTimePtr(startRaw); err != nil {
		return t, err
	}
	if t.ActualStartDate, err = parseTimePtr(actualRaw); err != nil {
		return t, err
	}
	if t.DueDate, err = parseTimePtr(dueRaw); err != nil {
		return t, err
	}
	if t.CompletionDate, err = parseTimePtr(doneRaw); err != nil {
		return t, err
	}
	if t.DeletedAt, err = parseTimePtr(deletedRaw); err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTime(createdRaw); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return t, err
	}
	return t, nil
}

func marshalRecurrence(r *task.Recurrence) (any, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal recurrence: %w", err)
	}
	return string(b), nil
}

func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	rec, err := marshalRecurrence(t.Recurrence)
	if err != nil {
		return err
	}
	if t.Version == 0 {
		t.Version = 1
	}
	_, err = s.exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TenantID, nullableString(t.TypeID), t.CostCenterID, t.Title, t.Description,
		string(t.Priority), string(t.Status), t.RequiresApproval,
		formatTimePtr(t.EstimatedStartDate), formatTimePtr(t.ActualStartDate),
		formatTimePtr(t.DueDate), formatTimePtr(t.CompletionDate), t.CompletionNotes, rec, t.Occurrence,
		nullableString(t.ParentTaskID), nullableString(t.SuccessorID), t.RequestedBy, t.Deleted,
		formatTimePtr(t.DeletedAt), t.Version, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err, "tasks.parent_task_id") {
			return fmt.Errorf("create task: successor of %s already exists: %w", t.ParentTaskID, domain.ErrConflict)
		}
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, tenantID, id string) (*task.Task, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND tenant_id = ?`, id, tenantID)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "get task %s", id)
	}
	return &t, nil
}

// LockTask is GetTask: every transaction begins IMMEDIATE and already holds
// the database write lock.
func (s *Store) LockTask(ctx context.Context, tenantID, id string, _ database.LockMode) (*task.Task, error) {
	return s.GetTask(ctx, tenantID, id)
}

func (s *Store) ListTasks(ctx context.Context, tenantID string, f task.ListFilter) ([]task.Task, error) {
	var (
		where = []string{"tenant_id = ?"}
		args  = []any{tenantID}
	)
	if !f.IncludeDeleted {
		where = append(where, "deleted = 0")
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.CostCenterID != "" {
		where = append(where, "cost_center_id = ?")
		args = append(args, f.CostCenterID)
	}
	if f.ParentTaskID != "" {
		where = append(where, "parent_task_id = ?")
		args = append(args, f.ParentTaskID)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	rec, err := marshalRecurrence(t.Recurrence)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx,
		`UPDATE tasks SET type_id = ?, cost_center_id = ?, title = ?, description = ?, priority = ?,
		   status = ?, requires_approval = ?, estimated_start_date = ?, actual_start_date = ?,
		   due_date = ?, completion_date = ?, completion_notes = ?, recurrence = ?,
		   recurrence_spawned_id = ?, deleted = ?, deleted_at = ?, updated_at = ?,
		   version = version + 1
		 WHERE id = ? AND tenant_id = ? AND version = ?`,
		nullableString(t.TypeID), t.CostCenterID, t.Title, t.Description, string(t.Priority),
		string(t.Status), t.RequiresApproval, formatTimePtr(t.EstimatedStartDate), formatTimePtr(t.ActualStartDate),
		formatTimePtr(t.DueDate), formatTimePtr(t.CompletionDate), t.CompletionNotes, rec,
		nullableString(t.SuccessorID), t.Deleted, formatTimePtr(t.DeletedAt), formatTime(t.UpdatedAt),
		t.ID, t.TenantID, t.Version)
	if err := execVersioned(res, err, "update task %s", t.ID); err != nil {
		return err
	}
	t.Version++
	return nil
}

func (s *Store) FindSuccessor(ctx context.Context, tenantID, parentID string) (*task.Task, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE parent_task_id = ? AND tenant_id = ?`, parentID, tenantID)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "find successor of %s", parentID)
	}
	return &t, nil
}
