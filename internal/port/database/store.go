// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/TaskForge/internal/domain/assignment"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tracking"
	"github.com/Strob0t/TaskForge/internal/port/directory"
)

// TxFunc runs against a transaction-bound Store.
type TxFunc func(ctx context.Context, tx Store) error

// LockMode selects the row lock LockTask holds until the transaction ends.
type LockMode int

const (
	// LockShared is held by units that write only the task's assignments.
	// Shared holders do not block each other.
	LockShared LockMode = iota
	// LockExclusive is held by units that write the task row itself.
	LockExclusive
)

// Store is the port interface for database operations. Every read and write
// is scoped to a tenant. Updates are optimistic: they apply only when the
// stored version equals the entity's Version, fail with domain.ErrConflict
// otherwise, and increment Version on success.
type Store interface {
	directory.Directory

	// WithTx runs fn in a transaction. fn's error rolls everything back.
	// Calling WithTx on a transaction-bound Store opens a savepoint whose
	// failure rolls back only the nested work.
	WithTx(ctx context.Context, fn TxFunc) error

	// Tasks
	CreateTask(ctx context.Context, t *task.Task) error
	GetTask(ctx context.Context, tenantID, id string) (*task.Task, error)
	// LockTask reads the task like GetTask and locks its row in mode until
	// the enclosing transaction ends.
	LockTask(ctx context.Context, tenantID, id string, mode LockMode) (*task.Task, error)
	ListTasks(ctx context.Context, tenantID string, filter task.ListFilter) ([]task.Task, error)
	UpdateTask(ctx context.Context, t *task.Task) error
	// FindSuccessor returns the task whose parent is parentID, or domain.ErrNotFound.
	FindSuccessor(ctx context.Context, tenantID, parentID string) (*task.Task, error)

	// Assignments. CreateAssignment fails with domain.ErrDuplicateAssignment
	// when the (task, employee) pair already exists.
	CreateAssignment(ctx context.Context, a *assignment.Assignment) error
	GetAssignment(ctx context.Context, tenantID, taskID, employeeID string) (*assignment.Assignment, error)
	ListAssignments(ctx context.Context, tenantID, taskID string) ([]assignment.Assignment, error)
	UpdateAssignment(ctx context.Context, a *assignment.Assignment) error

	// Time entries (append-only), oldest first.
	AppendEntry(ctx context.Context, e *tracking.Entry) error
	ListEntries(ctx context.Context, tenantID, assignmentID string) ([]tracking.Entry, error)

	// History (append-only). AppendEvent assigns Seq. ListEvents returns at
	// most limit events of the task positioned after the cursor, ordered by
	// (At, Seq).
	AppendEvent(ctx context.Context, e *history.Event) error
	ListEvents(ctx context.Context, tenantID, taskID string, after history.Cursor, limit int) ([]history.Event, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}
