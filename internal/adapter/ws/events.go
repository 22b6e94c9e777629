package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/Strob0t/TaskForge/internal/port/broadcast"
	"github.com/Strob0t/TaskForge/internal/port/notifier"
)

// EventHistory is the message type of a committed history event.
const EventHistory = "task.history"

// HistoryMessage is the payload of an EventHistory message.
type HistoryMessage struct {
	Level string `json:"level"`
	Title string `json:"title"`
	Event any    `json:"event"`
}

var (
	_ broadcast.Broadcaster = (*Hub)(nil)
	_ notifier.Notifier     = (*Hub)(nil)
)

// BroadcastEvent marshals payload and sends it to the clients of tenantID.
func (h *Hub) BroadcastEvent(ctx context.Context, tenantID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.BroadcastToTenant(ctx, tenantID, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

// Name implements notifier.Notifier.
func (h *Hub) Name() string { return "ws" }

// Send pushes n to the tenant's connected clients. Clients that are not
// connected simply miss the event.
func (h *Hub) Send(ctx context.Context, n notifier.Notification) error {
	if n.TenantID == "" {
		return errors.New("ws: notification without tenant")
	}
	h.BroadcastEvent(ctx, n.TenantID, EventHistory, HistoryMessage{
		Level: n.Level,
		Title: n.Title,
		Event: n.Event,
	})
	return nil
}
