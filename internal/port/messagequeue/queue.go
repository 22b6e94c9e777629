// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// Wildcards follow NATS syntax. The returned function cancels the
	// subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// SubjectHistory prefixes the subjects history events are published on:
// taskforge.history.<tenant>.<action>.
const SubjectHistory = "taskforge.history"

// SubjectHistoryAll matches every history subject.
const SubjectHistoryAll = SubjectHistory + ".>"

// HistorySubject returns the subject for one tenant's event action.
func HistorySubject(tenantID, action string) string {
	return SubjectHistory + "." + tenantID + "." + action
}
