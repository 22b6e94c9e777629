package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "taskforge"

// Metrics holds all TaskForge metric instruments.
type Metrics struct {
	Operations         metric.Int64Counter
	OperationDuration  metric.Float64Histogram
	Conflicts          metric.Int64Counter
	TrackedMinutes     metric.Int64Counter
	RecurrenceSpawned  metric.Int64Counter
	RecurrenceFailures metric.Int64Counter
	NotifyFailures     metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Operations, err = meter.Int64Counter("taskforge.operations",
		metric.WithDescription("Engine operations by name and outcome"))
	if err != nil {
		return nil, err
	}

	m.OperationDuration, err = meter.Float64Histogram("taskforge.operation.duration_seconds",
		metric.WithDescription("Engine operation duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.Conflicts, err = meter.Int64Counter("taskforge.conflicts",
		metric.WithDescription("Optimistic concurrency conflicts observed"))
	if err != nil {
		return nil, err
	}

	m.TrackedMinutes, err = meter.Int64Counter("taskforge.tracked_minutes",
		metric.WithDescription("Closed tracking minutes recorded"))
	if err != nil {
		return nil, err
	}

	m.RecurrenceSpawned, err = meter.Int64Counter("taskforge.recurrence.spawned",
		metric.WithDescription("Recurring successor tasks created"))
	if err != nil {
		return nil, err
	}

	m.RecurrenceFailures, err = meter.Int64Counter("taskforge.recurrence.failures",
		metric.WithDescription("Successor creations reported as follow-up failures"))
	if err != nil {
		return nil, err
	}

	m.NotifyFailures, err = meter.Int64Counter("taskforge.notify.failures",
		metric.WithDescription("History event deliveries that failed"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
