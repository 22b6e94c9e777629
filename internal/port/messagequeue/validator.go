package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects only need valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	if !strings.HasPrefix(subject, SubjectHistory+".") {
		return nil
	}

	var p HistoryEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	switch {
	case p.TaskID == "":
		return fmt.Errorf("schema validation failed for %s: task_id is required", subject)
	case p.TenantID == "":
		return fmt.Errorf("schema validation failed for %s: tenant_id is required", subject)
	case p.Action == "":
		return fmt.Errorf("schema validation failed for %s: action is required", subject)
	case subject != HistorySubject(p.TenantID, p.Action):
		return fmt.Errorf("schema validation failed for %s: payload is for %s", subject, HistorySubject(p.TenantID, p.Action))
	}
	return nil
}
