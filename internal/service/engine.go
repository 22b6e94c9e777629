// Package service contains the task engine: the registry, assignment
// manager, time tracker, status coordinator, history ledger and recurrence
// generator, composed behind Engine.
package service

import (
	"context"
	"time"

	tfotel "github.com/Strob0t/TaskForge/internal/adapter/otel"
	"github.com/Strob0t/TaskForge/internal/config"
	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/assignment"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tracking"
	"github.com/Strob0t/TaskForge/internal/port/database"
	"github.com/Strob0t/TaskForge/internal/port/directory"
)

// Clock supplies server-side timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Caller identifies the tenant and actor an operation runs for.
type Caller struct {
	TenantID string
	Actor    history.Actor
}

func (c Caller) validate() error {
	if c.TenantID == "" {
		return domain.Validationf("tenant is required")
	}
	if c.Actor.ID == "" {
		return domain.Validationf("actor is required")
	}
	switch c.Actor.Type {
	case history.ActorUser, history.ActorEmployee, history.ActorSystem:
		return nil
	default:
		return domain.Validationf("unknown actor type %q", c.Actor.Type)
	}
}

func (c Caller) asSystem() Caller {
	return Caller{TenantID: c.TenantID, Actor: history.System}
}

// Option configures an Engine.
type Option func(*core)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(e *core) { e.clock = c }
}

// WithDirectory resolves reference data through d instead of the store,
// typically a cached directory.
func WithDirectory(d directory.Directory) Option {
	return func(e *core) { e.dir = d }
}

// WithMetrics records operation metrics.
func WithMetrics(m *tfotel.Metrics) Option {
	return func(e *core) { e.metrics = m }
}

// WithDispatcher forwards committed history events to notification sinks.
func WithDispatcher(d *Dispatcher) Option {
	return func(e *core) { e.dispatcher = d }
}

// WithConfig applies engine tuning.
func WithConfig(cfg config.Engine) Option {
	return func(e *core) { e.cfg = cfg }
}

// Engine is the synchronous call surface of the task engine.
type Engine struct {
	Tasks       *TaskRegistry
	Assignments *AssignmentManager
	Tracker     *TimeTracker
	Status      *StatusCoordinator
	History     *HistoryLedger
	Recurrence  *RecurrenceGenerator

	core *core
}

// NewEngine wires the engine components around store.
func NewEngine(store database.Store, opts ...Option) *Engine {
	c := &core{
		store: store,
		dir:   store,
		clock: systemClock{},
		cfg:   config.Defaults().Engine,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ledger = &HistoryLedger{core: c}

	e := &Engine{core: c, History: c.ledger}
	e.Recurrence = &RecurrenceGenerator{core: c}
	e.Status = &StatusCoordinator{core: c, recurrence: e.Recurrence}
	e.Tasks = &TaskRegistry{core: c}
	e.Assignments = &AssignmentManager{core: c, status: e.Status}
	e.Tracker = &TimeTracker{core: c, status: e.Status}
	return e
}

// Store returns the store the engine writes to.
func (e *Engine) Store() database.Store { return e.core.store }

// CreateTask registers a new Pending task.
func (e *Engine) CreateTask(ctx context.Context, caller Caller, req task.CreateRequest) (*task.Task, error) {
	return e.Tasks.Create(ctx, caller, req)
}

// Assign binds an employee to a task.
func (e *Engine) Assign(ctx context.Context, caller Caller, taskID string, req assignment.CreateRequest) (*assignment.Assignment, error) {
	return e.Assignments.Assign(ctx, caller, taskID, req)
}

// Unassign cancels an employee's assignment.
func (e *Engine) Unassign(ctx context.Context, caller Caller, taskID, employeeID, reason string) error {
	return e.Assignments.Unassign(ctx, caller, taskID, employeeID, reason)
}

// TrackAction records a start, pause, resume or stop.
func (e *Engine) TrackAction(ctx context.Context, caller Caller, taskID, employeeID string, action tracking.Action, opts TrackOptions) (*tracking.Entry, error) {
	return e.Tracker.Track(ctx, caller, taskID, employeeID, action, opts)
}

// ChangeStatus applies an explicit task transition. A terminal transition
// that commits but fails to spawn its successor returns the task together
// with a *RecurrenceError.
func (e *Engine) ChangeStatus(ctx context.Context, caller Caller, taskID string, to task.Status, opts StatusOptions) (*task.Task, error) {
	return e.Status.Change(ctx, caller, taskID, to, opts)
}

// GetHistory returns the task's events in order.
func (e *Engine) GetHistory(ctx context.Context, tenantID, taskID string) ([]history.Event, error) {
	return e.History.ListAll(ctx, tenantID, taskID)
}

// Close waits for in-flight notifications.
func (e *Engine) Close() {
	if e.core.dispatcher != nil {
		e.core.dispatcher.Wait()
	}
}
