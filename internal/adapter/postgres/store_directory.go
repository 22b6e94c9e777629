package postgres

import (
	"context"
	"fmt"

	dir "github.com/Strob0t/TaskForge/internal/domain/directory"
)

func (s *Store) GetTenant(ctx context.Context, id string) (*dir.Tenant, error) {
	var t dir.Tenant
	err := s.db.QueryRow(ctx, `SELECT id, name, active FROM tenants WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Active)
	if err != nil {
		return nil, notFoundWrap(err, "get tenant %s", id)
	}
	return &t, nil
}

func (s *Store) GetCostCenter(ctx context.Context, tenantID, id string) (*dir.CostCenter, error) {
	var c dir.CostCenter
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, code, name, active FROM cost_centers WHERE id = $1 AND tenant_id = $2`, id, tenantID).
		Scan(&c.ID, &c.TenantID, &c.Code, &c.Name, &c.Active)
	if err != nil {
		return nil, notFoundWrap(err, "get cost center %s", id)
	}
	return &c, nil
}

func (s *Store) GetTaskType(ctx context.Context, tenantID, id string) (*dir.TaskType, error) {
	var tt dir.TaskType
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, requires_approval FROM task_types WHERE id = $1 AND tenant_id = $2`, id, tenantID).
		Scan(&tt.ID, &tt.TenantID, &tt.Name, &tt.RequiresApproval)
	if err != nil {
		return nil, notFoundWrap(err, "get task type %s", id)
	}
	return &tt, nil
}

func (s *Store) GetEmployee(ctx context.Context, tenantID, id string) (*dir.Employee, error) {
	var e dir.Employee
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, active FROM employees WHERE id = $1 AND tenant_id = $2`, id, tenantID).
		Scan(&e.ID, &e.TenantID, &e.Name, &e.Active)
	if err != nil {
		return nil, notFoundWrap(err, "get employee %s", id)
	}
	return &e, nil
}

// --- Registrar ---

func (s *Store) PutTenant(ctx context.Context, t dir.Tenant) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO tenants (id, name, active) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, active = EXCLUDED.active`,
		t.ID, t.Name, t.Active)
	if err != nil {
		return fmt.Errorf("put tenant %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) PutCostCenter(ctx context.Context, c dir.CostCenter) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO cost_centers (id, tenant_id, code, name, active) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, active = EXCLUDED.active`,
		c.ID, c.TenantID, c.Code, c.Name, c.Active)
	if err != nil {
		return fmt.Errorf("put cost center %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) PutTaskType(ctx context.Context, tt dir.TaskType) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO task_types (id, tenant_id, name, requires_approval) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, requires_approval = EXCLUDED.requires_approval`,
		tt.ID, tt.TenantID, tt.Name, tt.RequiresApproval)
	if err != nil {
		return fmt.Errorf("put task type %s: %w", tt.ID, err)
	}
	return nil
}

func (s *Store) PutEmployee(ctx context.Context, e dir.Employee) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO employees (id, tenant_id, name, active) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, active = EXCLUDED.active`,
		e.ID, e.TenantID, e.Name, e.Active)
	if err != nil {
		return fmt.Errorf("put employee %s: %w", e.ID, err)
	}
	return nil
}
