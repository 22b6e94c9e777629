package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	tfotel "github.com/Strob0t/TaskForge/internal/adapter/otel"
	"github.com/Strob0t/TaskForge/internal/config"
	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/logger"
	"github.com/Strob0t/TaskForge/internal/port/database"
	"github.com/Strob0t/TaskForge/internal/port/directory"
)

// core is the state shared by every engine component.
type core struct {
	store      database.Store
	dir        directory.Directory
	clock      Clock
	metrics    *tfotel.Metrics
	dispatcher *Dispatcher
	ledger     *HistoryLedger
	cfg        config.Engine
}

// unit is one atomic read-modify-write. Every event recorded through it is
// written in the same transaction as the state change it describes.
type unit struct {
	tx        database.Store
	caller    Caller
	requestID string
	now       time.Time
	ledger    *HistoryLedger
	events    []history.Event
}

// run executes fn in a transaction and dispatches the recorded events once
// it committed.
func (c *core) run(ctx context.Context, op string, caller Caller, taskID string, fn func(ctx context.Context, u *unit) error) error {
	if err := caller.validate(); err != nil {
		return err
	}
	ctx, span := tfotel.StartOperationSpan(ctx, op, caller.TenantID, taskID)
	start := time.Now()

	var u *unit
	err := c.store.WithTx(ctx, func(ctx context.Context, tx database.Store) error {
		u = &unit{
			tx:        tx,
			caller:    caller,
			requestID: logger.RequestID(ctx),
			now:       c.clock.Now().UTC(),
			ledger:    c.ledger,
		}
		return fn(ctx, u)
	})

	c.observe(ctx, op, start, err)
	tfotel.EndSpan(span, err)
	if err != nil {
		return err
	}
	if c.dispatcher != nil {
		c.dispatcher.Dispatch(ctx, u.events)
	}
	return nil
}

func (c *core) observe(ctx context.Context, op string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome(err)),
	)
	c.metrics.Operations.Add(ctx, 1, attrs)
	c.metrics.OperationDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if errors.Is(err, domain.ErrConflict) {
		c.metrics.Conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrDuplicateAssignment):
		return "duplicate_assignment"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrPrerequisiteNotMet):
		return "prerequisite_not_met"
	default:
		return "error"
	}
}

// at returns the unit's timestamp, raised to the latest of floors so that an
// entity's timestamps never move backwards.
func (u *unit) at(floors ...time.Time) time.Time {
	t := u.now
	for _, f := range floors {
		if f.After(t) {
			t = f
		}
	}
	return t
}

// record appends e to the ledger inside the unit's transaction. Actor,
// tenant and request id default to the unit's caller.
func (u *unit) record(ctx context.Context, e history.Event) error {
	if e.ActorType == "" {
		e.ActorType, e.ActorID = u.caller.Actor.Type, u.caller.Actor.ID
	}
	if e.TenantID == "" {
		e.TenantID = u.caller.TenantID
	}
	if e.RequestID == "" {
		e.RequestID = u.requestID
	}
	if e.At.IsZero() {
		e.At = u.now
	}
	if err := u.ledger.record(ctx, u.tx, &e); err != nil {
		return err
	}
	u.events = append(u.events, e)
	return nil
}

// nested runs fn in a savepoint. On failure the savepoint's writes and the
// events recorded inside it are discarded while the unit stays usable.
func (u *unit) nested(ctx context.Context, fn func(ctx context.Context) error) error {
	mark, outer := len(u.events), u.tx
	err := outer.WithTx(ctx, func(ctx context.Context, tx database.Store) error {
		u.tx = tx
		defer func() { u.tx = outer }()
		return fn(ctx)
	})
	if err != nil {
		u.events = u.events[:mark]
	}
	return err
}

// loadTask returns a live (not soft-deleted) task of the caller's tenant and
// holds an exclusive row lock on it. Units that write the task row use it.
func (u *unit) loadTask(ctx context.Context, id string) (*task.Task, error) {
	return u.lockTask(ctx, id, database.LockExclusive)
}

// shareTask is loadTask for units that only write the task's assignments.
// They run concurrently with each other but not with status or delete
// writers of the same task.
func (u *unit) shareTask(ctx context.Context, id string) (*task.Task, error) {
	return u.lockTask(ctx, id, database.LockShared)
}

func (u *unit) lockTask(ctx context.Context, id string, mode database.LockMode) (*task.Task, error) {
	t, err := u.tx.LockTask(ctx, u.caller.TenantID, id, mode)
	if err != nil {
		return nil, err
	}
	if t.Deleted {
		return nil, fmt.Errorf("task %s is deleted: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

func newID() string {
	return uuid.NewString()
}
