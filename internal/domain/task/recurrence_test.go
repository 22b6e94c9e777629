package task

import (
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/TaskForge/internal/domain"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestRecurrenceValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Recurrence
		wantErr bool
	}{
		{"none", Recurrence{Frequency: FrequencyNone}, false},
		{"monthly", Recurrence{Frequency: FrequencyMonthly, Interval: 1}, false},
		{"zero interval", Recurrence{Frequency: FrequencyDaily, Interval: 0}, true},
		{"negative max", Recurrence{Frequency: FrequencyWeekly, Interval: 1, MaxOccurrences: -1}, true},
		{"unknown frequency", Recurrence{Frequency: "hourly", Interval: 1}, true},
		{"end date only", Recurrence{Frequency: FrequencyDaily, Interval: 1, EndDate: day(2024, 6, 1)}, false},
		{"both end conditions", Recurrence{Frequency: FrequencyDaily, Interval: 1, MaxOccurrences: 3, EndDate: day(2024, 6, 1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		in     *time.Time
		months int
		want   *time.Time
	}{
		{day(2024, 1, 15), 1, day(2024, 2, 15)},
		{day(2024, 1, 31), 1, day(2024, 2, 29)},
		{day(2023, 1, 31), 1, day(2023, 2, 28)},
		{day(2024, 1, 31), 2, day(2024, 3, 31)},
		{day(2024, 12, 10), 1, day(2025, 1, 10)},
		{day(2024, 2, 29), 12, day(2025, 2, 28)},
	}
	for _, tt := range tests {
		got := AddMonthsClamped(*tt.in, tt.months)
		if !got.Equal(*tt.want) {
			t.Errorf("AddMonthsClamped(%s, %d) = %s, want %s", tt.in.Format(time.DateOnly), tt.months, got.Format(time.DateOnly), tt.want.Format(time.DateOnly))
		}
	}
}

func TestNextOccurrenceMonthly(t *testing.T) {
	rec := &Recurrence{Frequency: FrequencyMonthly, Interval: 1}
	next, ok := rec.NextOccurrence(1, day(2024, 1, 15), nil, time.Now())
	if !ok {
		t.Fatal("expected a successor")
	}
	if next.Occurrence != 2 {
		t.Fatalf("expected occurrence 2, got %d", next.Occurrence)
	}
	if next.EstimatedStartDate == nil || !next.EstimatedStartDate.Equal(*day(2024, 2, 15)) {
		t.Fatalf("expected 2024-02-15, got %v", next.EstimatedStartDate)
	}
	if next.DueDate != nil {
		t.Fatalf("expected no due date, got %v", next.DueDate)
	}
}

func TestNextOccurrenceKeepsMonthEndAcrossSeries(t *testing.T) {
	rec := &Recurrence{Frequency: FrequencyMonthly, Interval: 1}
	start := day(2024, 1, 31)

	first, ok := rec.NextOccurrence(1, start, nil, time.Now())
	if !ok || !first.EstimatedStartDate.Equal(*day(2024, 2, 29)) {
		t.Fatalf("first successor: got %v", first.EstimatedStartDate)
	}
	second, ok := first.Recurrence.NextOccurrence(first.Occurrence, first.EstimatedStartDate, nil, time.Now())
	if !ok || !second.EstimatedStartDate.Equal(*day(2024, 3, 31)) {
		t.Fatalf("second successor: got %v", second.EstimatedStartDate)
	}
}

func TestNextOccurrenceAdvancesBothDates(t *testing.T) {
	rec := &Recurrence{Frequency: FrequencyWeekly, Interval: 2}
	next, ok := rec.NextOccurrence(1, day(2024, 3, 4), day(2024, 3, 8), time.Now())
	if !ok {
		t.Fatal("expected a successor")
	}
	if !next.EstimatedStartDate.Equal(*day(2024, 3, 18)) || !next.DueDate.Equal(*day(2024, 3, 22)) {
		t.Fatalf("got start %v due %v", next.EstimatedStartDate, next.DueDate)
	}
}

func TestNextOccurrenceWithoutDatesAnchorsOnTerminalDay(t *testing.T) {
	rec := &Recurrence{Frequency: FrequencyDaily, Interval: 3}
	terminal := time.Date(2024, 5, 10, 17, 45, 0, 0, time.UTC)
	next, ok := rec.NextOccurrence(1, nil, nil, terminal)
	if !ok {
		t.Fatal("expected a successor")
	}
	if !next.EstimatedStartDate.Equal(*day(2024, 5, 13)) {
		t.Fatalf("expected 2024-05-13, got %v", next.EstimatedStartDate)
	}
}

func TestNextOccurrenceEndConditions(t *testing.T) {
	t.Run("max occurrences reached", func(t *testing.T) {
		rec := &Recurrence{Frequency: FrequencyDaily, Interval: 1, MaxOccurrences: 3}
		if _, ok := rec.NextOccurrence(3, day(2024, 1, 1), nil, time.Now()); ok {
			t.Fatal("expected no successor after the third occurrence")
		}
		if _, ok := rec.NextOccurrence(2, day(2024, 1, 1), nil, time.Now()); !ok {
			t.Fatal("expected a successor after the second occurrence")
		}
	})
	t.Run("next start past end date", func(t *testing.T) {
		rec := &Recurrence{Frequency: FrequencyMonthly, Interval: 1, EndDate: day(2024, 2, 10)}
		if _, ok := rec.NextOccurrence(1, day(2024, 1, 15), nil, time.Now()); ok {
			t.Fatal("expected no successor past the end date")
		}
	})
	t.Run("next start on end date", func(t *testing.T) {
		rec := &Recurrence{Frequency: FrequencyMonthly, Interval: 1, EndDate: day(2024, 2, 15)}
		if _, ok := rec.NextOccurrence(1, day(2024, 1, 15), nil, time.Now()); !ok {
			t.Fatal("expected a successor on the end date")
		}
	})
	t.Run("inactive", func(t *testing.T) {
		var rec *Recurrence
		if _, ok := rec.NextOccurrence(1, day(2024, 1, 15), nil, time.Now()); ok {
			t.Fatal("nil recurrence must not produce a successor")
		}
		none := &Recurrence{Frequency: FrequencyNone}
		if _, ok := none.NextOccurrence(1, day(2024, 1, 15), nil, time.Now()); ok {
			t.Fatal("frequency none must not produce a successor")
		}
	})
}
