package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	tfotel "github.com/Strob0t/TaskForge/internal/adapter/otel"
	"github.com/Strob0t/TaskForge/internal/config"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/port/notifier"
)

// Dispatcher forwards committed history events to every registered
// notifier. Delivery is fire-and-forget: failures are logged and counted,
// never returned to the operation that produced the event.
type Dispatcher struct {
	notifiers      []notifier.Notifier
	enabledActions map[string]bool
	concurrency    int
	timeout        time.Duration
	metrics        *tfotel.Metrics
	wg             sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. If cfg.NotifyActions is empty, all
// actions are forwarded.
func NewDispatcher(notifiers []notifier.Notifier, cfg config.Engine, metrics *tfotel.Metrics) *Dispatcher {
	enabled := make(map[string]bool, len(cfg.NotifyActions))
	for _, a := range cfg.NotifyActions {
		enabled[a] = true
	}
	concurrency := cfg.NotifyConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		notifiers:      notifiers,
		enabledActions: enabled,
		concurrency:    concurrency,
		timeout:        cfg.NotifyTimeout,
		metrics:        metrics,
	}
}

// Dispatch delivers events in the background, in order. The request's
// cancellation does not abort delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, events []history.Event) {
	if len(d.notifiers) == 0 || len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for i := range events {
			d.Notify(ctx, NotificationFor(events[i]))
		}
	}()
}

// Notify sends n to all notifiers concurrently and waits for them.
// Errors are logged but do not interrupt delivery to other notifiers.
func (d *Dispatcher) Notify(ctx context.Context, n notifier.Notification) {
	if len(d.enabledActions) > 0 && !d.enabledActions[n.Source] {
		return
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, provider := range d.notifiers {
		g.Go(func() error {
			d.send(ctx, provider, n)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) send(ctx context.Context, provider notifier.Notifier, n notifier.Notification) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	ctx, span := tfotel.StartDispatchSpan(ctx, provider.Name(), n.Source)
	err := provider.Send(ctx, n)
	tfotel.EndSpan(span, err)
	if err != nil {
		slog.WarnContext(ctx, "notification send failed",
			"provider", provider.Name(),
			"title", n.Title,
			"error", err,
		)
		if d.metrics != nil {
			d.metrics.NotifyFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("notify.sink", provider.Name())))
		}
		return
	}
	slog.DebugContext(ctx, "notification sent", "provider", provider.Name(), "title", n.Title)
}

// Wait blocks until every pending Dispatch finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// NotifierCount returns the number of registered notifiers.
func (d *Dispatcher) NotifierCount() int {
	return len(d.notifiers)
}

// NotificationFor wraps a history event for the notifier port.
func NotificationFor(e history.Event) notifier.Notification {
	level := "info"
	switch e.Action {
	case history.ActionCancelled, history.ActionDeleted:
		level = "warning"
	case history.ActionStatusChanged:
		if e.NewStatus == "cancelled" || e.NewStatus == "rejected" {
			level = "warning"
		}
	}
	title := fmt.Sprintf("task %s %s", e.TaskID, e.Action)
	if e.NewStatus != "" {
		title += " → " + e.NewStatus
	}
	return notifier.Notification{
		TenantID: e.TenantID,
		Source:   string(e.Action),
		Level:    level,
		Title:    title,
		Event:    e,
	}
}
