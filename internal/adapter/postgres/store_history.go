package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/domain/history"
)

func (s *Store) AppendEvent(ctx context.Context, e *history.Event) error {
	var changes []byte
	if len(e.Changes) > 0 {
		b, err := json.Marshal(e.Changes)
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
		changes = b
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO history_events (id, tenant_id, task_id, assignment_id, actor_type, actor_id, action,
		   prev_status, new_status, reason, changes, request_id, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING seq`,
		e.ID, e.TenantID, e.TaskID, nullIfEmpty(e.AssignmentID), string(e.ActorType), e.ActorID,
		string(e.Action), e.PrevStatus, e.NewStatus, e.Reason, changes, e.RequestID, e.At,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("append history event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, tenantID, taskID string, after history.Cursor, limit int) ([]history.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT seq, id, tenant_id, task_id, assignment_id, actor_type, actor_id, action,
		   prev_status, new_status, reason, changes, request_id, at
		 FROM history_events
		 WHERE task_id = $1 AND tenant_id = $2 AND (at, seq) > ($3, $4)
		 ORDER BY at ASC, seq ASC
		 LIMIT $5`,
		taskID, tenantID, after.At, after.Seq, limit)
	if err != nil {
		return nil, fmt.Errorf("list history events: %w", err)
	}
	defer rows.Close()

	var events []history.Event
	for rows.Next() {
		var (
			e            history.Event
			assignmentID *string
			changes      []byte
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.TenantID, &e.TaskID, &assignmentID, &e.ActorType, &e.ActorID,
			&e.Action, &e.PrevStatus, &e.NewStatus, &e.Reason, &changes, &e.RequestID, &e.At); err != nil {
			return nil, fmt.Errorf("scan history event: %w", err)
		}
		e.AssignmentID = derefString(assignmentID)
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, fmt.Errorf("decode changes of event %s: %w", e.ID, err)
			}
		}
		e.At = e.At.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
