package sqlite

import (
	"context"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/domain/tracking"
)

func (s *Store) AppendEntry(ctx context.Context, e *tracking.Entry) error {
	_, err := s.exec(ctx,
		`INSERT INTO time_entries (id, tenant_id, task_id, assignment_id, action, at, location, notes, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.TaskID, e.AssignmentID, string(e.Action), formatTime(e.At), e.Location, e.Notes, e.Reason)
	if err != nil {
		return fmt.Errorf("append time entry: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, tenantID, assignmentID string) ([]tracking.Entry, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, tenant_id, task_id, assignment_id, action, at, location, notes, reason
		 FROM time_entries WHERE assignment_id = ? AND tenant_id = ? ORDER BY at ASC, seq ASC`,
		assignmentID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	var entries []tracking.Entry
	for rows.Next() {
		var (
			e     tracking.Entry
			atRaw string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.TaskID, &e.AssignmentID, &e.Action, &atRaw,
			&e.Location, &e.Notes, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		if e.At, err = parseTime(atRaw); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
