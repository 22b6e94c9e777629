package service

import "fmt"

// RecurrenceError reports that a terminal transition committed but its
// recurring successor could not be created. The task's own state stands;
// the spawn can be retried with RecurrenceGenerator.OnTerminalStatus.
type RecurrenceError struct {
	TaskID string
	Err    error
}

func (e *RecurrenceError) Error() string {
	return fmt.Sprintf("spawn successor of task %s: %v", e.TaskID, e.Err)
}

func (e *RecurrenceError) Unwrap() error { return e.Err }
