// Package testsupport provides a real migrated store, directory fixtures and
// a controllable clock for tests.
package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Strob0t/TaskForge/internal/adapter/sqlite"
	dir "github.com/Strob0t/TaskForge/internal/domain/directory"
	"github.com/Strob0t/TaskForge/internal/port/directory"
)

// Fixture ids seeded by MustOpenStore.
const (
	TenantID        = "tenant-acme"
	OtherTenantID   = "tenant-globex"
	CostCenterID    = "cc-ops"
	TaskTypeID      = "type-maintenance"
	ApprovalTypeID  = "type-purchase"
	EmployeeE1      = "emp-e1"
	EmployeeE2      = "emp-e2"
	EmployeeE3      = "emp-e3"
	InactiveEmpID   = "emp-retired"
	OtherEmployeeID = "emp-globex"
)

// Seed is the directory content every test store starts with.
var Seed = dir.Seed{
	Tenants: []dir.Tenant{
		{ID: TenantID, Name: "Acme", Active: true},
		{ID: OtherTenantID, Name: "Globex", Active: true},
	},
	CostCenters: []dir.CostCenter{
		{ID: CostCenterID, TenantID: TenantID, Code: "OPS", Name: "Operations", Active: true},
	},
	TaskTypes: []dir.TaskType{
		{ID: TaskTypeID, TenantID: TenantID, Name: "Maintenance"},
		{ID: ApprovalTypeID, TenantID: TenantID, Name: "Purchase", RequiresApproval: true},
	},
	Employees: []dir.Employee{
		{ID: EmployeeE1, TenantID: TenantID, Name: "Ada", Active: true},
		{ID: EmployeeE2, TenantID: TenantID, Name: "Brook", Active: true},
		{ID: EmployeeE3, TenantID: TenantID, Name: "Cruz", Active: true},
		{ID: InactiveEmpID, TenantID: TenantID, Name: "Dale", Active: false},
		{ID: OtherEmployeeID, TenantID: OtherTenantID, Name: "Eli", Active: true},
	},
}

// MustOpenStore opens a migrated SQLite store in a temp dir, seeds the
// directory fixtures and registers cleanup.
func MustOpenStore(t testing.TB) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "taskforge.db"))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if err := directory.Import(context.Background(), store, Seed); err != nil {
		t.Fatalf("seed directory: %v", err)
	}
	return store
}
