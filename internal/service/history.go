package service

import (
	"context"
	"fmt"
	"iter"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/port/database"
)

// HistoryLedger is the append-only audit log of every task.
type HistoryLedger struct {
	core *core
}

// record appends e through tx. It is the only write path into the ledger
// and never updates an existing event.
func (h *HistoryLedger) record(ctx context.Context, tx database.Store, e *history.Event) error {
	if e.TaskID == "" || e.Action == "" {
		return fmt.Errorf("history event without task or action: %w", domain.ErrValidation)
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if err := tx.AppendEvent(ctx, e); err != nil {
		return fmt.Errorf("record %s event of task %s: %w", e.Action, e.TaskID, err)
	}
	return nil
}

// List returns the task's events ordered by (At, Seq). The sequence is
// lazy: pages are fetched as the caller ranges over it, and every range
// starts again from the first event. Deleted tasks keep their history.
func (h *HistoryLedger) List(ctx context.Context, tenantID, taskID string) iter.Seq2[history.Event, error] {
	return func(yield func(history.Event, error) bool) {
		if _, err := h.core.store.GetTask(ctx, tenantID, taskID); err != nil {
			yield(history.Event{}, err)
			return
		}
		size := h.core.cfg.HistoryPageSize
		if size <= 0 {
			size = 100
		}
		var cursor history.Cursor
		for {
			page, err := h.core.store.ListEvents(ctx, tenantID, taskID, cursor, size)
			if err != nil {
				yield(history.Event{}, err)
				return
			}
			for i := range page {
				if !yield(page[i], nil) {
					return
				}
			}
			if len(page) < size {
				return
			}
			cursor = history.CursorOf(&page[len(page)-1])
		}
	}
}

// ListAll collects List into a slice.
func (h *HistoryLedger) ListAll(ctx context.Context, tenantID, taskID string) ([]history.Event, error) {
	var out []history.Event
	for e, err := range h.List(ctx, tenantID, taskID) {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Verification compares a task's cached statuses with the state rebuilt
// from its history.
type Verification struct {
	TaskID            string              `json:"task_id"`
	Events            int                 `json:"events"`
	StatusTransitions int                 `json:"status_transitions"`
	Projection        *history.Projection `json:"projection"`
	Mismatches        []history.Mismatch  `json:"mismatches,omitempty"`
}

// Consistent reports whether the cached state matches the projection.
func (v *Verification) Consistent() bool {
	return len(v.Mismatches) == 0
}

// Verify rebuilds the task's projection from its events and diffs it
// against the stored task and assignment statuses.
func (h *HistoryLedger) Verify(ctx context.Context, tenantID, taskID string) (*Verification, error) {
	events, err := h.ListAll(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	proj, err := history.Rebuild(taskID, events)
	if err != nil {
		return nil, fmt.Errorf("rebuild task %s: %w", taskID, err)
	}

	t, err := h.core.store.GetTask(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	list, err := h.core.store.ListAssignments(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	cached := make(map[string]string, len(list))
	for i := range list {
		cached[list[i].ID] = string(list[i].Status)
	}

	return &Verification{
		TaskID:            taskID,
		Events:            len(events),
		StatusTransitions: proj.StatusTransitions,
		Projection:        proj,
		Mismatches:        proj.Diff(string(t.Status), t.Deleted, cached),
	}, nil
}
