package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/domain/history"
)

func (s *Store) AppendEvent(ctx context.Context, e *history.Event) error {
	var changes any
	if len(e.Changes) > 0 {
		b, err := json.Marshal(e.Changes)
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
		changes = string(b)
	}
	res, err := s.exec(ctx,
		`INSERT INTO history_events (id, tenant_id, task_id, assignment_id, actor_type, actor_id, action,
		   prev_status, new_status, reason, changes, request_id, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.TaskID, nullableString(e.AssignmentID), string(e.ActorType), e.ActorID,
		string(e.Action), e.PrevStatus, e.NewStatus, e.Reason, changes, e.RequestID, formatTime(e.At))
	if err != nil {
		return fmt.Errorf("append history event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("history event seq: %w", err)
	}
	e.Seq = seq
	return nil
}

func (s *Store) ListEvents(ctx context.Context, tenantID, taskID string, after history.Cursor, limit int) ([]history.Event, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT seq, id, tenant_id, task_id, assignment_id, actor_type, actor_id, action,
		   prev_status, new_status, reason, changes, request_id, at
		 FROM history_events
		 WHERE task_id = ? AND tenant_id = ? AND (at, seq) > (?, ?)
		 ORDER BY at ASC, seq ASC
		 LIMIT ?`,
		taskID, tenantID, formatTime(after.At), after.Seq, limit)
	if err != nil {
		return nil, fmt.Errorf("list history events: %w", err)
	}
	defer rows.Close()

	var events []history.Event
	for rows.Next() {
		var (
			e                     history.Event
			assignmentID, changes sql.NullString
			atRaw                 string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.TenantID, &e.TaskID, &assignmentID, &e.ActorType, &e.ActorID,
			&e.Action, &e.PrevStatus, &e.NewStatus, &e.Reason, &changes, &e.RequestID, &atRaw); err != nil {
			return nil, fmt.Errorf("scan history event: %w", err)
		}
		e.AssignmentID = assignmentID.String
		if changes.String != "" {
			if err := json.Unmarshal([]byte(changes.String), &e.Changes); err != nil {
				return nil, fmt.Errorf("decode changes of event %s: %w", e.ID, err)
			}
		}
		if e.At, err = parseTime(atRaw); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
