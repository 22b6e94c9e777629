// Package directory defines the reference entities the task engine checks
// existence against: tenants, cost centers, task types and employees.
package directory

// Tenant is an isolated customer account.
type Tenant struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Active bool   `json:"active" yaml:"active"`
}

// CostCenter is the accounting unit a task is booked against.
type CostCenter struct {
	ID       string `json:"id" yaml:"id"`
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
	Code     string `json:"code" yaml:"code"`
	Name     string `json:"name" yaml:"name"`
	Active   bool   `json:"active" yaml:"active"`
}

// TaskType classifies tasks. RequiresApproval gates InProgress behind an
// explicit Approved decision.
type TaskType struct {
	ID               string `json:"id" yaml:"id"`
	TenantID         string `json:"tenant_id" yaml:"tenant_id"`
	Name             string `json:"name" yaml:"name"`
	RequiresApproval bool   `json:"requires_approval" yaml:"requires_approval"`
}

// Employee is a person work can be assigned to.
type Employee struct {
	ID       string `json:"id" yaml:"id"`
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
	Name     string `json:"name" yaml:"name"`
	Active   bool   `json:"active" yaml:"active"`
}

// Seed is a batch of reference data, as read by the directory import command.
type Seed struct {
	Tenants     []Tenant     `yaml:"tenants"`
	CostCenters []CostCenter `yaml:"cost_centers"`
	TaskTypes   []TaskType   `yaml:"task_types"`
	Employees   []Employee   `yaml:"employees"`
}
