package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/port/notifier"
)

func TestNewHub(t *testing.T) {
	hub := NewHub("", nil)
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
	if hub.Name() != "ws" {
		t.Fatalf("Name = %q", hub.Name())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub("", nil)

	// Broadcasting with no connections should not panic.
	hub.Broadcast(context.Background(), Message{Type: "test", Payload: []byte(`{"key":"value"}`)})
	hub.BroadcastToTenant(context.Background(), "tenant-1", Message{Type: "test", Payload: []byte(`{}`)})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub("", nil)

	// A channel cannot be marshaled to JSON; should log, not panic.
	hub.BroadcastEvent(context.Background(), "t1", "bad", make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub("", nil)
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.remove(&conn{cancel: cancel, tenantID: "test-tenant"})
}

func TestHubRejectsMissingTenant(t *testing.T) {
	hub := NewHub("", nil)
	rec := httptest.NewRecorder()
	hub.HandleWS(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSendRequiresTenant(t *testing.T) {
	if err := NewHub("", nil).Send(context.Background(), notifier.Notification{}); err == nil {
		t.Fatal("expected error")
	}
}

func dial(t *testing.T, srv *httptest.Server, tenant string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?tenant=" + tenant
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.CloseNow() })
	return c
}

func waitForConnections(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.ConnectionCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("connections = %d, want %d", hub.ConnectionCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubSendIsTenantScoped(t *testing.T) {
	hub := NewHub("", nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	acme := dial(t, srv, "acme")
	globex := dial(t, srv, "globex")
	waitForConnections(t, hub, 2)

	ev := history.Event{ID: "ev-1", TenantID: "acme", TaskID: "task-1", Action: history.ActionCreated}
	if err := hub.Send(context.Background(), notifier.Notification{TenantID: "acme", Level: "info", Title: "task task-1 created", Event: ev}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := acme.Read(ctx)
	if err != nil {
		t.Fatalf("read acme: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != EventHistory {
		t.Fatalf("type = %q, want %q", msg.Type, EventHistory)
	}
	var payload struct {
		Title string        `json:"title"`
		Event history.Event `json:"event"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Event.ID != "ev-1" || payload.Title != "task task-1 created" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancelShort()
	if _, _, err := globex.Read(short); err == nil {
		t.Fatal("globex client received another tenant's event")
	}
}
