package history

import (
	"fmt"
	"sort"
)

// Projection is the current state implied by a task's event log.
type Projection struct {
	TaskID            string            `json:"task_id"`
	TaskStatus        string            `json:"task_status"`
	Deleted           bool              `json:"deleted"`
	Assignments       map[string]string `json:"assignments"`
	StatusTransitions int               `json:"status_transitions"`
}

// Rebuild folds the ordered events of one task into a projection. It fails
// when an event's previous status does not match the state built so far,
// which means the log has a gap or was reordered.
func Rebuild(taskID string, events []Event) (*Projection, error) {
	p := &Projection{TaskID: taskID, Assignments: map[string]string{}}
	for i := range events {
		if err := p.apply(&events[i]); err != nil {
			return p, fmt.Errorf("event %d (%s): %w", events[i].Seq, events[i].Action, err)
		}
	}
	return p, nil
}

func (p *Projection) apply(e *Event) error {
	if e.TaskID != p.TaskID {
		return fmt.Errorf("belongs to task %s", e.TaskID)
	}
	if e.AssignmentScoped() {
		cur, known := p.Assignments[e.AssignmentID]
		if known && e.PrevStatus != "" && e.PrevStatus != cur {
			return fmt.Errorf("assignment %s prev status %q, projected %q", e.AssignmentID, e.PrevStatus, cur)
		}
		if !known && e.Action != ActionAssigned {
			return fmt.Errorf("assignment %s has no assigned event", e.AssignmentID)
		}
		if e.NewStatus != "" {
			p.Assignments[e.AssignmentID] = e.NewStatus
		}
		return nil
	}

	switch e.Action {
	case ActionCreated:
		p.TaskStatus = e.NewStatus
	case ActionStatusChanged:
		if e.PrevStatus != p.TaskStatus {
			return fmt.Errorf("prev status %q, projected %q", e.PrevStatus, p.TaskStatus)
		}
		p.TaskStatus = e.NewStatus
		p.StatusTransitions++
	case ActionDeleted:
		p.Deleted = true
	}
	return nil
}

// Mismatch is one difference between the cached state and the projection.
type Mismatch struct {
	Subject   string `json:"subject"`
	Cached    string `json:"cached"`
	Projected string `json:"projected"`
}

// Diff compares the projection with the cached task status and assignment
// statuses keyed by assignment id.
func (p *Projection) Diff(taskStatus string, deleted bool, assignments map[string]string) []Mismatch {
	var out []Mismatch
	if taskStatus != p.TaskStatus {
		out = append(out, Mismatch{Subject: "task:" + p.TaskID, Cached: taskStatus, Projected: p.TaskStatus})
	}
	if deleted != p.Deleted {
		out = append(out, Mismatch{Subject: "task:" + p.TaskID + ":deleted", Cached: fmt.Sprint(deleted), Projected: fmt.Sprint(p.Deleted)})
	}

	ids := make(map[string]struct{}, len(assignments)+len(p.Assignments))
	for id := range assignments {
		ids[id] = struct{}{}
	}
	for id := range p.Assignments {
		ids[id] = struct{}{}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	for _, id := range sorted {
		if assignments[id] != p.Assignments[id] {
			out = append(out, Mismatch{Subject: "assignment:" + id, Cached: assignments[id], Projected: p.Assignments[id]})
		}
	}
	return out
}
