// Package domain provides shared domain-level sentinel errors.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
// Callers may retry with fresh state.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates malformed input. Never retried automatically.
var ErrValidation = errors.New("validation failed")

// ErrInvalidTransition indicates a state change that is not part of the state machine.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrDuplicateAssignment indicates the employee is already assigned to the task.
var ErrDuplicateAssignment = errors.New("duplicate assignment")

// ErrPrerequisiteNotMet indicates a business-rule gate blocked the operation.
var ErrPrerequisiteNotMet = errors.New("prerequisite not met")

// ErrForbidden indicates the actor is not allowed to perform the operation.
var ErrForbidden = errors.New("forbidden")

// TransitionError describes a rejected state change. It matches
// ErrInvalidTransition via errors.Is.
type TransitionError struct {
	Entity string // "task", "assignment" or "tracker"
	From   string
	To     string // target state or action name
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s cannot go from %q to %q", ErrInvalidTransition, e.Entity, e.From, e.To)
}

// Is reports whether target is ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Validationf builds an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// Prerequisitef builds an error wrapping ErrPrerequisiteNotMet.
func Prerequisitef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrPrerequisiteNotMet)...)
}
