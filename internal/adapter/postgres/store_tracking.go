package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/domain/tracking"
)

func (s *Store) AppendEntry(ctx context.Context, e *tracking.Entry) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO time_entries (id, tenant_id, task_id, assignment_id, action, at, location, notes, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.TenantID, e.TaskID, e.AssignmentID, string(e.Action), e.At, e.Location, e.Notes, e.Reason)
	if err != nil {
		return fmt.Errorf("append time entry: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, tenantID, assignmentID string) ([]tracking.Entry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, task_id, assignment_id, action, at, location, notes, reason
		 FROM time_entries WHERE assignment_id = $1 AND tenant_id = $2 ORDER BY at ASC, seq ASC`,
		assignmentID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	var entries []tracking.Entry
	for rows.Next() {
		var e tracking.Entry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.TaskID, &e.AssignmentID, &e.Action, &e.At,
			&e.Location, &e.Notes, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		e.At = e.At.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
