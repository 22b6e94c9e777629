// Package notifier defines the notification sink port. Sinks receive history
// events after their transaction committed; delivery is best effort.
package notifier

import (
	"context"
	"errors"

	"github.com/Strob0t/TaskForge/internal/domain/history"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Notification is the payload sent through a Notifier.
type Notification struct {
	TenantID string        `json:"tenant_id"`
	Source   string        `json:"source"` // history action, e.g. "status_changed"
	Level    string        `json:"level"`  // "info", "warning"
	Title    string        `json:"title"`
	Event    history.Event `json:"event"`
}

// Notifier is the port interface for sending notifications.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "nats", "ws").
	Name() string

	// Send delivers a notification.
	Send(ctx context.Context, n Notification) error
}
