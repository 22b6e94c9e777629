package postgres

import (
	"context"
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
		t                             task.Task
		typeID, parentID, successorID *string
		recurrenceJSON                []byte
	)
	err := row.Scan(&t.ID, &t.TenantID, &typeID, &t.CostCenterID, &t.Title, &t.Description,
		&t.Priority, &t.Status, &t.RequiresApproval, &t.EstimatedStartDate, &t.ActualStartDate,
		&t.DueDate, &t.CompletionDate, &t.CompletionNotes, &recurrenceJSON, &t.Occurrence,
		&parentID, &successorID, &t.RequestedBy, &t.Deleted, &t.DeletedAt, &t.Version,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.TypeID = derefString(typeID)
	t.ParentTaskID = derefString(parentID)
	t.SuccessorID = derefString(successorID)
	if len(recurrenceJSON) > 0 {
		var rec task.Recurrence
		if err := json.Unmarshal(recurrenceJSON, &rec); err != nil {
			return t, fmt.Errorf("decode recurrence of task %s: %w", t.ID, err)
		}
		t.Recurrence = &rec
	}
	t.EstimatedStartDate = utcPtr(t.EstimatedStartDate)
	t.ActualStartDate = utcPtr(t.ActualStartDate)
	t.DueDate = utcPtr(t.DueDate)
	t.CompletionDate = utcPtr(t.CompletionDate)
	t.DeletedAt = utcPtr(t.DeletedAt)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func marshalRecurrence(r *task.Recurrence) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal recurrence: %w", err)
	}
	return b, nil
}

func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	rec, err := marshalRecurrence(t.Recurrence)
	if err != nil {
		return err
	}
	if t.Version == 0 {
		t.Version = 1
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		t.ID, t.TenantID, nullIfEmpty(t.TypeID), t.CostCenterID, t.Title, t.Description,
		string(t.Priority), string(t.Status), t.RequiresApproval, t.EstimatedStartDate, t.ActualStartDate,
		t.DueDate, t.CompletionDate, t.CompletionNotes, rec, t.Occurrence,
		nullIfEmpty(t.ParentTaskID), nullIfEmpty(t.SuccessorID), t.RequestedBy, t.Deleted, t.DeletedAt,
		t.Version, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "idx_tasks_parent") {
			return fmt.Errorf("create task: successor of %s already exists: %w", t.ParentTaskID, domain.ErrConflict)
		}
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, tenantID, id string) (*task.Task, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "get task %s", id)
	}
	return &t, nil
}

// LockTask reads the task with SELECT ... FOR SHARE or FOR NO KEY UPDATE.
// Outside a transaction the lock is released as soon as the row is read.
func (s *Store) LockTask(ctx context.Context, tenantID, id string, mode database.LockMode) (*task.Task, error) {
	clause := "FOR SHARE"
	if mode == database.LockExclusive {
		clause = "FOR NO KEY UPDATE"
	}
	row := s.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND tenant_id = $2 `+clause, id, tenantID)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "lock task %s", id)
	}
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, tenantID string, f task.ListFilter) ([]task.Task, error) {
	var (
		where = []string{"tenant_id = $1"}
		args  = []any{tenantID}
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !f.IncludeDeleted {
		where = append(where, "NOT deleted")
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.CostCenterID != "" {
		add("cost_center_id = $%d", f.CostCenterID)
	}
	if f.ParentTaskID != "" {
		add("parent_task_id = $%d", f.ParentTaskID)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at ASC, id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
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
	tag, err := s.db.Exec(ctx,
		`UPDATE tasks SET type_id = $3, cost_center_id = $4, title = $5, description = $6, priority = $7,
		   status = $8, requires_approval = $9, estimated_start_date = $10, actual_start_date = $11,
		   due_date = $12, completion_date = $13, completion_notes = $14, recurrence = $15,
		   recurrence_spawned_id = $16, deleted = $17, deleted_at = $18, updated_at = $19,
		   version = version + 1
		 WHERE id = $1 AND tenant_id = $2 AND version = $20`,
		t.ID, t.TenantID, nullIfEmpty(t.TypeID), t.CostCenterID, t.Title, t.Description, string(t.Priority),
		string(t.Status), t.RequiresApproval, t.EstimatedStartDate, t.ActualStartDate,
		t.DueDate, t.CompletionDate, t.CompletionNotes, rec,
		nullIfEmpty(t.SuccessorID), t.Deleted, t.DeletedAt, t.UpdatedAt,
		t.Version)
	if err := execVersioned(tag, err, "update task %s", t.ID); err != nil {
		return err
	}
	t.Version++
	return nil
}

func (s *Store) FindSuccessor(ctx context.Context, tenantID, parentID string) (*task.Task, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE parent_task_id = $1 AND tenant_id = $2`, parentID, tenantID)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "find successor of %s", parentID)
	}
	return &t, nil
}
