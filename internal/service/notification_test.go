package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/TaskForge/internal/config"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/port/notifier"
	"github.com/Strob0t/TaskForge/internal/testsupport"
)

// mockNotifier implements notifier.Notifier for testing.
type mockNotifier struct {
	name    string
	sendErr error
	delay   time.Duration

	mu   sync.Mutex
	sent []notifier.Notification
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Send(ctx context.Context, n notifier.Notification) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	return nil
}

func (m *mockNotifier) actions() []history.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]history.Action, 0, len(m.sent))
	for _, n := range m.sent {
		out = append(out, n.Event.Action)
	}
	return out
}

func engineConfig(actions ...string) config.Engine {
	cfg := config.Defaults().Engine
	cfg.NotifyActions = actions
	cfg.NotifyTimeout = 50 * time.Millisecond
	return cfg
}

func TestDispatcher_Notify(t *testing.T) {
	m1 := &mockNotifier{name: "mock1"}
	m2 := &mockNotifier{name: "mock2"}
	d := NewDispatcher([]notifier.Notifier{m1, m2}, engineConfig(), nil)

	d.Notify(context.Background(), NotificationFor(history.Event{TaskID: "k1", Action: history.ActionCreated}))

	if len(m1.actions()) != 1 || len(m2.actions()) != 1 {
		t.Fatalf("expected one notification per notifier, got %d and %d", len(m1.actions()), len(m2.actions()))
	}
	if d.NotifierCount() != 2 {
		t.Fatalf("expected 2 notifiers, got %d", d.NotifierCount())
	}
}

func TestDispatcher_FilterActions(t *testing.T) {
	m := &mockNotifier{name: "mock"}
	d := NewDispatcher([]notifier.Notifier{m}, engineConfig("status_changed"), nil)

	d.Notify(context.Background(), NotificationFor(history.Event{TaskID: "k1", Action: history.ActionCreated}))
	if len(m.actions()) != 0 {
		t.Fatalf("expected created to be filtered, got %v", m.actions())
	}
	d.Notify(context.Background(), NotificationFor(history.Event{TaskID: "k1", Action: history.ActionStatusChanged}))
	if len(m.actions()) != 1 {
		t.Fatalf("expected status_changed to pass, got %v", m.actions())
	}
}

func TestDispatcher_ErrorContinues(t *testing.T) {
	failer := &mockNotifier{name: "fail", sendErr: errors.New("connection refused")}
	slow := &mockNotifier{name: "slow", delay: time.Second}
	success := &mockNotifier{name: "ok"}
	d := NewDispatcher([]notifier.Notifier{failer, slow, success}, engineConfig(), nil)

	d.Notify(context.Background(), NotificationFor(history.Event{TaskID: "k1", Action: history.ActionCreated}))

	if len(success.actions()) != 1 {
		t.Fatalf("expected delivery despite failing sinks, got %d", len(success.actions()))
	}
	if len(slow.actions()) != 0 {
		t.Fatal("slow sink should have timed out")
	}
}

func TestNotificationForLevels(t *testing.T) {
	tests := []struct {
		event history.Event
		level string
	}{
		{history.Event{Action: history.ActionCreated, NewStatus: "pending"}, "info"},
		{history.Event{Action: history.ActionCancelled}, "warning"},
		{history.Event{Action: history.ActionStatusChanged, NewStatus: "rejected"}, "warning"},
		{history.Event{Action: history.ActionStatusChanged, NewStatus: "completed"}, "info"},
	}
	for _, tt := range tests {
		n := NotificationFor(tt.event)
		if n.Level != tt.level || n.Source != string(tt.event.Action) {
			t.Errorf("%s/%s: level=%s source=%s", tt.event.Action, tt.event.NewStatus, n.Level, n.Source)
		}
	}
}

func TestEngineDispatchesCommittedEventsOnly(t *testing.T) {
	sink := &mockNotifier{name: "sink"}
	d := NewDispatcher([]notifier.Notifier{sink}, engineConfig(), nil)
	h := newHarness(t, nil, WithDispatcher(d))
	ctx := context.Background()

	tk := h.createTask(t, task.CreateRequest{})
	h.assign(t, tk.ID, testsupport.EmployeeE1)
	if _, err := h.engine.ChangeStatus(ctx, manager, tk.ID, task.StatusCompleted, StatusOptions{Override: true}); err == nil {
		t.Fatal("pending task cannot complete")
	}
	h.engine.Close()

	got := sink.actions()
	slices.Sort(got)
	want := []history.Action{history.ActionAssigned, history.ActionCreated}
	if !slices.Equal(got, want) {
		t.Fatalf("dispatched %v, want %v", got, want)
	}
}
