package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/port/messagequeue"
	"github.com/Strob0t/TaskForge/internal/port/notifier"
	"github.com/Strob0t/TaskForge/internal/resilience"
)

// Publisher forwards committed history events to the message queue. It
// implements notifier.Notifier; an open breaker fails sends fast while the
// broker is unreachable.
type Publisher struct {
	queue   messagequeue.Queue
	breaker *resilience.Breaker
}

// NewPublisher wraps queue. breaker may be nil.
func NewPublisher(queue messagequeue.Queue, breaker *resilience.Breaker) *Publisher {
	return &Publisher{queue: queue, breaker: breaker}
}

// Name implements notifier.Notifier.
func (p *Publisher) Name() string { return "nats" }

// Send publishes the event on taskforge.history.<tenant>.<action>.
func (p *Publisher) Send(ctx context.Context, n notifier.Notification) error {
	data, err := json.Marshal(PayloadOf(&n.Event))
	if err != nil {
		return fmt.Errorf("marshal history event %s: %w", n.Event.ID, err)
	}
	subject := messagequeue.HistorySubject(n.Event.TenantID, string(n.Event.Action))
	publish := func(ctx context.Context) error {
		return p.queue.Publish(ctx, subject, data)
	}
	if p.breaker == nil {
		return publish(ctx)
	}
	return p.breaker.Execute(ctx, publish)
}

// PayloadOf converts a history event to its wire schema.
func PayloadOf(e *history.Event) messagequeue.HistoryEventPayload {
	p := messagequeue.HistoryEventPayload{
		ID:           e.ID,
		Seq:          e.Seq,
		TenantID:     e.TenantID,
		TaskID:       e.TaskID,
		AssignmentID: e.AssignmentID,
		ActorType:    string(e.ActorType),
		ActorID:      e.ActorID,
		Action:       string(e.Action),
		PrevStatus:   e.PrevStatus,
		NewStatus:    e.NewStatus,
		Reason:       e.Reason,
		RequestID:    e.RequestID,
		At:           e.At,
	}
	for _, c := range e.Changes {
		p.Changes = append(p.Changes, messagequeue.FieldChangePayload{Field: c.Field, Old: c.Old, New: c.New})
	}
	return p
}
