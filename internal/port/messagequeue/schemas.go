package messagequeue

import "time"

// FieldChangePayload mirrors one field-level change of a history event.
type FieldChangePayload struct {
	Field string `json:"field"`
	Old   any    `json:"old,omitempty"`
	New   any    `json:"new,omitempty"`
}

// HistoryEventPayload is the schema for taskforge.history.* messages.
type HistoryEventPayload struct {
	ID           string               `json:"id"`
	Seq          int64                `json:"seq"`
	TenantID     string               `json:"tenant_id"`
	TaskID       string               `json:"task_id"`
	AssignmentID string               `json:"assignment_id,omitempty"`
	ActorType    string               `json:"actor_type"`
	ActorID      string               `json:"actor_id"`
	Action       string               `json:"action"`
	PrevStatus   string               `json:"prev_status,omitempty"`
	NewStatus    string               `json:"new_status,omitempty"`
	Reason       string               `json:"reason,omitempty"`
	Changes      []FieldChangePayload `json:"changes,omitempty"`
	RequestID    string               `json:"request_id,omitempty"`
	At           time.Time            `json:"at"`
}
