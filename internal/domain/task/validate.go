package task

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/Strob0t/TaskForge/internal/domain"
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 4000
)

// NormalizeTitle trims surrounding whitespace and converts the title to NFC
// so that visually identical titles compare equal.
func NormalizeTitle(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func validateTitle(title string) error {
	if title == "" {
		return domain.Validationf("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return domain.Validationf("title exceeds %d characters", maxTitleLen)
	}
	for _, r := range title {
		if unicode.IsControl(r) {
			return domain.Validationf("title contains control characters")
		}
	}
	return nil
}

func validateDates(start, due *time.Time) error {
	if start != nil && due != nil && due.Before(*start) {
		return domain.Validationf("due_date is before estimated_start_date")
	}
	return nil
}

// Validate checks the request and normalises its title in place. Directory
// references (cost center, task type) are checked by the caller.
func (r *CreateRequest) Validate() error {
	r.Title = NormalizeTitle(r.Title)
	if err := validateTitle(r.Title); err != nil {
		return err
	}
	if r.CostCenterID == "" {
		return domain.Validationf("cost_center_id is required")
	}
	if len(r.Description) > maxDescriptionLen {
		return domain.Validationf("description exceeds %d characters", maxDescriptionLen)
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if !r.Priority.Valid() {
		return domain.Validationf("unknown priority %q", r.Priority)
	}
	if err := validateDates(r.EstimatedStartDate, r.DueDate); err != nil {
		return err
	}
	if r.Recurrence != nil {
		if err := r.Recurrence.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Apply validates the patch and applies it to t. It returns the field-level
// changes actually made and whether the due date moved later. An empty
// change list means the patch was a no-op.
func (r *UpdateRequest) Apply(t *Task) ([]domain.FieldChange, bool, error) {
	if r.ID != nil && *r.ID != t.ID {
		return nil, false, domain.Validationf("task id cannot be changed")
	}
	if r.TenantID != nil && *r.TenantID != t.TenantID {
		return nil, false, domain.Validationf("tenant cannot be changed")
	}
	if r.Status != nil && Status(*r.Status) != t.Status {
		return nil, false, domain.Validationf("status cannot be changed through update; use a status transition")
	}
	if r.Recurrence != nil && r.ClearRecurrence {
		return nil, false, domain.Validationf("recurrence and clear_recurrence are mutually exclusive")
	}

	var changes []domain.FieldChange
	record := func(field string, from, to any) {
		changes = append(changes, domain.FieldChange{Field: field, Old: from, New: to})
	}

	if r.Title != nil {
		title := NormalizeTitle(*r.Title)
		if err := validateTitle(title); err != nil {
			return nil, false, err
		}
		if title != t.Title {
			record("title", t.Title, title)
			t.Title = title
		}
	}
	if r.Description != nil && *r.Description != t.Description {
		if len(*r.Description) > maxDescriptionLen {
			return nil, false, domain.Validationf("description exceeds %d characters", maxDescriptionLen)
		}
		record("description", t.Description, *r.Description)
		t.Description = *r.Description
	}
	if r.Priority != nil && *r.Priority != t.Priority {
		if !r.Priority.Valid() {
			return nil, false, domain.Validationf("unknown priority %q", *r.Priority)
		}
		record("priority", t.Priority, *r.Priority)
		t.Priority = *r.Priority
	}
	if r.TypeID != nil && *r.TypeID != t.TypeID {
		record("type_id", t.TypeID, *r.TypeID)
		t.TypeID = *r.TypeID
	}
	if r.CostCenterID != nil && *r.CostCenterID != t.CostCenterID {
		if *r.CostCenterID == "" {
			return nil, false, domain.Validationf("cost_center_id cannot be empty")
		}
		record("cost_center_id", t.CostCenterID, *r.CostCenterID)
		t.CostCenterID = *r.CostCenterID
	}

	start, due := t.EstimatedStartDate, t.DueDate
	if r.EstimatedStartDate != nil {
		start = r.EstimatedStartDate
	}
	if r.DueDate != nil {
		due = r.DueDate
	}
	if err := validateDates(start, due); err != nil {
		return nil, false, err
	}

	if r.EstimatedStartDate != nil && !sameTime(t.EstimatedStartDate, r.EstimatedStartDate) {
		record("estimated_start_date", timeValue(t.EstimatedStartDate), *r.EstimatedStartDate)
		t.EstimatedStartDate = cloneTime(r.EstimatedStartDate)
	}
	postponed := false
	if r.DueDate != nil && !sameTime(t.DueDate, r.DueDate) {
		postponed = t.DueDate != nil && r.DueDate.After(*t.DueDate)
		record("due_date", timeValue(t.DueDate), *r.DueDate)
		t.DueDate = cloneTime(r.DueDate)
	}

	// Explicit date edits re-anchor the series on this occurrence.
	if t.Recurrence != nil && datesChanged(changes) {
		t.Recurrence.AnchorStart, t.Recurrence.AnchorDue, t.Recurrence.AnchorOccurrence = nil, nil, 0
	}

	switch {
	case r.ClearRecurrence && t.Recurrence != nil:
		record("recurrence", t.Recurrence.Frequency, nil)
		t.Recurrence = nil
	case r.Recurrence != nil:
		if err := r.Recurrence.Validate(); err != nil {
			return nil, false, err
		}
		rec := r.Recurrence.clone()
		rec.AnchorStart, rec.AnchorDue, rec.AnchorOccurrence = nil, nil, 0
		old := any(nil)
		if t.Recurrence != nil {
			old = fmt.Sprintf("%s/%d", t.Recurrence.Frequency, t.Recurrence.Interval)
		}
		record("recurrence", old, fmt.Sprintf("%s/%d", rec.Frequency, rec.Interval))
		t.Recurrence = &rec
	}

	return changes, postponed, nil
}

func datesChanged(changes []domain.FieldChange) bool {
	for _, c := range changes {
		if c.Field == "estimated_start_date" || c.Field == "due_date" {
			return true
		}
	}
	return false
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
