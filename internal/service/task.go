package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/domain"
	dir "github.com/Strob0t/TaskForge/internal/domain/directory"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/task"
)

// TaskRegistry owns task definitions and their soft-delete lifecycle.
type TaskRegistry struct {
	core *core
}

// Create validates req against the directory and stores a Pending task.
func (r *TaskRegistry) Create(ctx context.Context, caller Caller, req task.CreateRequest) (*task.Task, error) {
	if err := caller.validate(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := r.core.checkTenant(ctx, caller.TenantID); err != nil {
		return nil, err
	}
	if err := r.core.checkCostCenter(ctx, caller.TenantID, req.CostCenterID); err != nil {
		return nil, err
	}
	var tt *dir.TaskType
	if req.TypeID != "" {
		var err error
		if tt, err = r.core.resolveTaskType(ctx, caller.TenantID, req.TypeID); err != nil {
			return nil, err
		}
	}

	var created *task.Task
	err := r.core.run(ctx, "create_task", caller, "", func(ctx context.Context, u *unit) error {
		t := &task.Task{
			ID:                 newID(),
			TenantID:           caller.TenantID,
			TypeID:             req.TypeID,
			CostCenterID:       req.CostCenterID,
			Title:              req.Title,
			Description:        req.Description,
			Priority:           req.Priority,
			Status:             task.StatusPending,
			RequiresApproval:   tt != nil && tt.RequiresApproval,
			EstimatedStartDate: req.EstimatedStartDate,
			DueDate:            req.DueDate,
			Occurrence:         1,
			RequestedBy:        caller.Actor.ID,
			CreatedAt:          u.now,
			UpdatedAt:          u.now,
		}
		if req.Recurrence != nil && req.Recurrence.Frequency != task.FrequencyNone {
			rec := *req.Recurrence
			t.Recurrence = &rec
		}
		if err := u.tx.CreateTask(ctx, t); err != nil {
			return err
		}
		created = t
		return u.record(ctx, history.Event{
			TaskID:    t.ID,
			Action:    history.ActionCreated,
			NewStatus: string(t.Status),
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update applies a metadata patch. A patch that changes nothing writes no
// event. Moving the due date later is recorded as Postponed.
func (r *TaskRegistry) Update(ctx context.Context, caller Caller, id string, req task.UpdateRequest) (*task.Task, error) {
	if err := caller.validate(); err != nil {
		return nil, err
	}
	var tt *dir.TaskType
	if req.TypeID != nil && *req.TypeID != "" {
		var err error
		if tt, err = r.core.resolveTaskType(ctx, caller.TenantID, *req.TypeID); err != nil {
			return nil, err
		}
	}
	if req.CostCenterID != nil && *req.CostCenterID != "" {
		if err := r.core.checkCostCenter(ctx, caller.TenantID, *req.CostCenterID); err != nil {
			return nil, err
		}
	}

	var updated *task.Task
	err := r.core.run(ctx, "update_task", caller, id, func(ctx context.Context, u *unit) error {
		t, err := u.loadTask(ctx, id)
		if err != nil {
			return err
		}
		if t.Status.IsTerminal() {
			return &domain.TransitionError{Entity: "task", From: string(t.Status), To: "update"}
		}
		prevStatus := t.Status
		changes, postponed, err := req.Apply(t)
		if err != nil {
			return err
		}
		updated = t
		if len(changes) == 0 {
			return nil
		}
		if req.TypeID != nil {
			t.RequiresApproval = tt != nil && tt.RequiresApproval
		}
		t.UpdatedAt = u.at(t.UpdatedAt)
		if err := u.tx.UpdateTask(ctx, t); err != nil {
			return err
		}
		action := history.ActionUpdated
		if postponed {
			action = history.ActionPostponed
		}
		return u.record(ctx, history.Event{
			TaskID:     t.ID,
			Action:     action,
			PrevStatus: string(prevStatus),
			NewStatus:  string(t.Status),
			Changes:    changes,
			At:         t.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SoftDelete marks the task deleted. It fails with domain.ErrConflict while
// any assignment has an open tracking session.
func (r *TaskRegistry) SoftDelete(ctx context.Context, caller Caller, id, reason string) error {
	return r.core.run(ctx, "delete_task", caller, id, func(ctx context.Context, u *unit) error {
		t, err := u.loadTask(ctx, id)
		if err != nil {
			return err
		}
		list, err := u.tx.ListAssignments(ctx, caller.TenantID, id)
		if err != nil {
			return err
		}
		for i := range list {
			if list[i].HasOpenSession() {
				return fmt.Errorf("task %s: employee %s has an open tracking session: %w",
					id, list[i].EmployeeID, domain.ErrConflict)
			}
		}
		at := u.at(t.UpdatedAt)
		t.Deleted = true
		t.DeletedAt = &at
		t.UpdatedAt = at
		if err := u.tx.UpdateTask(ctx, t); err != nil {
			return err
		}
		return u.record(ctx, history.Event{
			TaskID:     t.ID,
			Action:     history.ActionDeleted,
			PrevStatus: string(t.Status),
			NewStatus:  string(t.Status),
			Reason:     reason,
			At:         at,
		})
	})
}

// Get returns a live task. Soft-deleted tasks are reported as not found.
func (r *TaskRegistry) Get(ctx context.Context, tenantID, id string) (*task.Task, error) {
	t, err := r.core.store.GetTask(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if t.Deleted {
		return nil, fmt.Errorf("task %s is deleted: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

// List returns the tenant's tasks matching f.
func (r *TaskRegistry) List(ctx context.Context, tenantID string, f task.ListFilter) ([]task.Task, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.Validationf("unknown task status %q", f.Status)
	}
	return r.core.store.ListTasks(ctx, tenantID, f)
}

func (c *core) checkTenant(ctx context.Context, tenantID string) error {
	t, err := c.dir.GetTenant(ctx, tenantID)
	if err != nil {
		return refError(err, "tenant", tenantID)
	}
	if !t.Active {
		return domain.Validationf("tenant %s is inactive", tenantID)
	}
	return nil
}

func (c *core) checkCostCenter(ctx context.Context, tenantID, id string) error {
	cc, err := c.dir.GetCostCenter(ctx, tenantID, id)
	if err != nil {
		return refError(err, "cost center", id)
	}
	if !cc.Active {
		return domain.Validationf("cost center %s is inactive", id)
	}
	return nil
}

func (c *core) resolveTaskType(ctx context.Context, tenantID, id string) (*dir.TaskType, error) {
	tt, err := c.dir.GetTaskType(ctx, tenantID, id)
	if err != nil {
		return nil, refError(err, "task type", id)
	}
	return tt, nil
}

func (c *core) resolveEmployee(ctx context.Context, tenantID, id string) (*dir.Employee, error) {
	e, err := c.dir.GetEmployee(ctx, tenantID, id)
	if err != nil {
		return nil, refError(err, "employee", id)
	}
	if !e.Active {
		return nil, domain.Validationf("employee %s is inactive", id)
	}
	return e, nil
}

// refError turns a directory miss into a validation failure of the request
// that referenced it.
func refError(err error, kind, id string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Validationf("unknown %s %s", kind, id)
	}
	return fmt.Errorf("resolve %s %s: %w", kind, id, err)
}
