// Package directory defines the read port for tenant reference data owned by
// other subsystems: tenants, cost centers, task types and employees.
package directory

import (
	"context"
	"fmt"

	dir "github.com/Strob0t/TaskForge/internal/domain/directory"
)

// Directory resolves reference data. Lookups of unknown or foreign-tenant
// records return domain.ErrNotFound.
type Directory interface {
	GetTenant(ctx context.Context, id string) (*dir.Tenant, error)
	GetCostCenter(ctx context.Context, tenantID, id string) (*dir.CostCenter, error)
	GetTaskType(ctx context.Context, tenantID, id string) (*dir.TaskType, error)
	GetEmployee(ctx context.Context, tenantID, id string) (*dir.Employee, error)
}

// Registrar writes reference data. It backs the directory import command and
// test fixtures; the engine itself never writes the directory.
type Registrar interface {
	PutTenant(ctx context.Context, t dir.Tenant) error
	PutCostCenter(ctx context.Context, c dir.CostCenter) error
	PutTaskType(ctx context.Context, tt dir.TaskType) error
	PutEmployee(ctx context.Context, e dir.Employee) error
}

// Import writes every record of seed through r, parents first. Existing
// records are overwritten.
func Import(ctx context.Context, r Registrar, seed dir.Seed) error {
	for _, t := range seed.Tenants {
		if err := r.PutTenant(ctx, t); err != nil {
			return fmt.Errorf("tenant %s: %w", t.ID, err)
		}
	}
	for _, c := range seed.CostCenters {
		if err := r.PutCostCenter(ctx, c); err != nil {
			return fmt.Errorf("cost center %s: %w", c.ID, err)
		}
	}
	for _, tt := range seed.TaskTypes {
		if err := r.PutTaskType(ctx, tt); err != nil {
			return fmt.Errorf("task type %s: %w", tt.ID, err)
		}
	}
	for _, e := range seed.Employees {
		if err := r.PutEmployee(ctx, e); err != nil {
			return fmt.Errorf("employee %s: %w", e.ID, err)
		}
	}
	return nil
}
