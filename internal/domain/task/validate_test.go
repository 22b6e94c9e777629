package task

import (
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/TaskForge/internal/domain"
)

func TestCreateRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		wantErr string
	}{
		{name: "minimal", req: CreateRequest{Title: "Inventory", CostCenterID: "cc-1"}},
		{name: "empty title", req: CreateRequest{Title: "   ", CostCenterID: "cc-1"}, wantErr: "title is required"},
		{name: "title too long", req: CreateRequest{Title: strings.Repeat("a", 256), CostCenterID: "cc-1"}, wantErr: "title exceeds"},
		{name: "control characters", req: CreateRequest{Title: "bad\x07title", CostCenterID: "cc-1"}, wantErr: "control characters"},
		{name: "missing cost center", req: CreateRequest{Title: "Inventory"}, wantErr: "cost_center_id is required"},
		{name: "unknown priority", req: CreateRequest{Title: "Inventory", CostCenterID: "cc-1", Priority: "critical"}, wantErr: "unknown priority"},
		{name: "due before start", req: CreateRequest{Title: "Inventory", CostCenterID: "cc-1", EstimatedStartDate: day(2024, 2, 1), DueDate: day(2024, 1, 1)}, wantErr: "due_date is before"},
		{name: "recurrence zero interval", req: CreateRequest{Title: "Inventory", CostCenterID: "cc-1", Recurrence: &Recurrence{Frequency: FrequencyMonthly}}, wantErr: "interval must be >= 1"},
		{
			name:    "both end conditions",
			req:     CreateRequest{Title: "Inventory", CostCenterID: "cc-1", Recurrence: &Recurrence{Frequency: FrequencyMonthly, Interval: 1, MaxOccurrences: 2, EndDate: day(2025, 1, 1)}},
			wantErr: "either max_occurrences or end_date",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateRequestNormalizesTitle(t *testing.T) {
	// "e" followed by a combining acute accent composes to U+00E9.
	req := CreateRequest{Title: "  Cafe\u0301 audit ", CostCenterID: "cc-1"}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Title != "Caf\u00e9 audit" {
		t.Fatalf("expected NFC title, got %q", req.Title)
	}
	if req.Priority != PriorityMedium {
		t.Fatalf("expected default priority medium, got %q", req.Priority)
	}
}

func ptr[T any](v T) *T { return &v }

func TestUpdateRequestApply(t *testing.T) {
	base := func() *Task {
		return &Task{
			ID: "t-1", TenantID: "tenant-1", Title: "Inventory", CostCenterID: "cc-1",
			Priority: PriorityLow, Status: StatusPending, DueDate: day(2024, 3, 1),
			Recurrence: &Recurrence{Frequency: FrequencyMonthly, Interval: 1, AnchorOccurrence: 1, AnchorDue: day(2024, 3, 1)},
		}
	}

	t.Run("rejects structural changes", func(t *testing.T) {
		for name, req := range map[string]UpdateRequest{
			"id":     {ID: ptr("t-2")},
			"tenant": {TenantID: ptr("tenant-2")},
			"status": {Status: ptr("completed")},
		} {
			if _, _, err := req.Apply(base()); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("%s: expected ErrValidation, got %v", name, err)
			}
		}
	})

	t.Run("same values are a no-op", func(t *testing.T) {
		req := UpdateRequest{ID: ptr("t-1"), Title: ptr("Inventory"), Status: ptr("pending")}
		changes, postponed, err := req.Apply(base())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(changes) != 0 || postponed {
			t.Fatalf("expected no changes, got %v postponed=%v", changes, postponed)
		}
	})

	t.Run("records field changes", func(t *testing.T) {
		tk := base()
		req := UpdateRequest{Title: ptr("Quarterly inventory"), Priority: ptr(PriorityHigh)}
		changes, postponed, err := req.Apply(tk)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if postponed {
			t.Fatal("did not expect postponement")
		}
		if len(changes) != 2 || changes[0].Field != "title" || changes[1].Field != "priority" {
			t.Fatalf("unexpected changes: %+v", changes)
		}
		if tk.Title != "Quarterly inventory" || tk.Priority != PriorityHigh {
			t.Fatalf("patch not applied: %+v", tk)
		}
	})

	t.Run("later due date is a postponement", func(t *testing.T) {
		tk := base()
		changes, postponed, err := (&UpdateRequest{DueDate: day(2024, 3, 20)}).Apply(tk)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !postponed || len(changes) != 1 {
			t.Fatalf("expected postponement, got postponed=%v changes=%v", postponed, changes)
		}
		if tk.Recurrence.AnchorOccurrence != 0 || tk.Recurrence.AnchorDue != nil {
			t.Fatal("expected recurrence anchor to be reset after a date change")
		}
	})

	t.Run("earlier due date is not a postponement", func(t *testing.T) {
		_, postponed, err := (&UpdateRequest{DueDate: day(2024, 2, 20)}).Apply(base())
		if err != nil || postponed {
			t.Fatalf("got postponed=%v err=%v", postponed, err)
		}
	})

	t.Run("recurrence patch with both end conditions", func(t *testing.T) {
		tk := base()
		req := UpdateRequest{Recurrence: &Recurrence{
			Frequency: FrequencyWeekly, Interval: 1, MaxOccurrences: 4, EndDate: day(2024, 9, 1),
		}}
		if _, _, err := req.Apply(tk); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("clear recurrence", func(t *testing.T) {
		tk := base()
		changes, _, err := (&UpdateRequest{ClearRecurrence: true}).Apply(tk)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tk.Recurrence != nil || len(changes) != 1 {
			t.Fatalf("expected recurrence cleared, got %+v", tk.Recurrence)
		}
	})
}
