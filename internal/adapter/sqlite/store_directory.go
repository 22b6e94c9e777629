package sqlite

import (
	"context"
	"fmt"

	dir "github.com/Strob0t/TaskForge/internal/domain/directory"
)

func (s *Store) GetTenant(ctx context.Context, id string) (*dir.Tenant, error) {
	var t dir.Tenant
	err := s.q.QueryRowContext(ctx, `SELECT id, name, active FROM tenants WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Active)
	if err != nil {
		return nil, notFoundWrap(err, "get tenant %s", id)
	}
	return &t, nil
}

func (s *Store) GetCostCenter(ctx context.Context, tenantID, id string) (*dir.CostCenter, error) {
	var c dir.CostCenter
	err := s.q.QueryRowContext(ctx,
		`SELECT id, tenant_id, code, name, active FROM cost_centers WHERE id = ? AND tenant_id = ?`, id, tenantID).
		Scan(&c.ID, &c.TenantID, &c.Code, &c.Name, &c.Active)
	if err != nil {
		return nil, notFoundWrap(err, "get cost center %s", id)
	}
	return &c, nil
}

func (s *Store) GetTaskType(ctx context.Context, tenantID, id string) (*dir.TaskType, error) {
	var tt dir.TaskType
	err := s.q.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, requires_approval FROM task_types WHERE id = ? AND tenant_id = ?`, id, tenantID).
		Scan(&tt.ID, &tt.TenantID, &tt.Name, &tt.RequiresApproval)
	if err != nil {
		return nil, notFoundWrap(err, "get task type %s", id)
	}
	return &tt, nil
}

func (s *Store) GetEmployee(ctx context.Context, tenantID, id string) (*dir.Employee, error) {
	var e dir.Employee
	err := s.q.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, active FROM employees WHERE id = ? AND tenant_id = ?`, id, tenantID).
		Scan(&e.ID, &e.TenantID, &e.Name, &e.Active)
	if err != nil {
		return nil, notFoundWrap(err, "get employee %s", id)
	}
	return &e, nil
}

func (s *Store) PutTenant(ctx context.Context, t dir.Tenant) error {
	_, err := s.exec(ctx,
		`INSERT INTO tenants (id, name, active) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, active = excluded.active`,
		t.ID, t.Name, t.Active)
	if err != nil {
		return fmt.Errorf("put tenant %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) PutCostCenter(ctx context.Context, c dir.CostCenter) error {
	_, err := s.exec(ctx,
		`INSERT INTO cost_centers (id, tenant_id, code, name, active) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET code = excluded.code, name = excluded.name, active = excluded.active`,
		c.ID, c.TenantID, c.Code, c.Name, c.Active)
	if err != nil {
		return fmt.Errorf("put cost center %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) PutTaskType(ctx context.Context, tt dir.TaskType) error {
	_, err := s.exec(ctx,
		`INSERT INTO task_types (id, tenant_id, name, requires_approval) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, requires_approval = excluded.requires_approval`,
		tt.ID, tt.TenantID, tt.Name, tt.RequiresApproval)
	if err != nil {
		return fmt.Errorf("put task type %s: %w", tt.ID, err)
	}
	return nil
}

func (s *Store) PutEmployee(ctx context.Context, e dir.Employee) error {
	_, err := s.exec(ctx,
		`INSERT INTO employees (id, tenant_id, name, active) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, active = excluded.active`,
		e.ID, e.TenantID, e.Name, e.Active)
	if err != nil {
		return fmt.Errorf("put employee %s: %w", e.ID, err)
	}
	return nil
}
