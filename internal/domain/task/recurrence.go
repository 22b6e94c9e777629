package task

import (
	"time"

	"github.com/Strob0t/TaskForge/internal/domain"
)

// Frequency is the unit a recurrence advances by.
type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Recurrence configures automatic successor creation. Anchor fields pin the
// series to the dates of a reference occurrence so that month-end clamping
// does not drift (Jan 31 → Feb 29 → Mar 31).
type Recurrence struct {
	Frequency        Frequency  `json:"frequency"`
	Interval         int        `json:"interval"`
	MaxOccurrences   int        `json:"max_occurrences,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	AnchorStart      *time.Time `json:"anchor_start,omitempty"`
	AnchorDue        *time.Time `json:"anchor_due,omitempty"`
	AnchorOccurrence int        `json:"anchor_occurrence,omitempty"`
}

// Validate checks the configuration syntactically.
func (r *Recurrence) Validate() error {
	if r.EndDate != nil && r.MaxOccurrences > 0 {
		return domain.Validationf("recurrence takes either max_occurrences or end_date, not both")
	}
	switch r.Frequency {
	case FrequencyNone:
		return nil
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		return domain.Validationf("unknown recurrence frequency %q", r.Frequency)
	}
	if r.Interval < 1 {
		return domain.Validationf("recurrence interval must be >= 1")
	}
	if r.MaxOccurrences < 0 {
		return domain.Validationf("recurrence max_occurrences must be >= 0")
	}
	return nil
}

// Active reports whether r schedules successors at all.
func (r *Recurrence) Active() bool {
	return r != nil && r.Frequency != "" && r.Frequency != FrequencyNone
}

func (r Recurrence) clone() Recurrence {
	r.EndDate = cloneTime(r.EndDate)
	r.AnchorStart = cloneTime(r.AnchorStart)
	r.AnchorDue = cloneTime(r.AnchorDue)
	return r
}

// Anchor pins the series to the given occurrence's dates.
func (r *Recurrence) Anchor(occurrence int, start, due *time.Time) {
	r.AnchorOccurrence = occurrence
	r.AnchorStart = cloneTime(start)
	r.AnchorDue = cloneTime(due)
}

// Advance moves t forward by steps intervals of the configured frequency.
// Monthly and yearly steps keep the day of month, clamped to the last day of
// shorter months.
func (r *Recurrence) Advance(t time.Time, steps int) time.Time {
	n := r.Interval * steps
	switch r.Frequency {
	case FrequencyDaily:
		return t.AddDate(0, 0, n)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7*n)
	case FrequencyMonthly:
		return AddMonthsClamped(t, n)
	case FrequencyYearly:
		return AddMonthsClamped(t, 12*n)
	default:
		return t
	}
}

// AddMonthsClamped adds months to t without overflowing into the following
// month: 2024-01-31 + 1 month is 2024-02-29.
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// Next describes the successor a recurrence would create.
type Next struct {
	Occurrence         int
	EstimatedStartDate *time.Time
	DueDate            *time.Time
	Recurrence         Recurrence
}

// NextOccurrence computes the successor of the task holding occurrence
// number occurrence. start and due are that task's dates; terminalAt is the
// moment it reached a terminal status and serves as the anchor when the
// series carries no dates. The second value is false when the end condition
// is already satisfied.
func (r *Recurrence) NextOccurrence(occurrence int, start, due *time.Time, terminalAt time.Time) (Next, bool) {
	if !r.Active() {
		return Next{}, false
	}
	if r.MaxOccurrences > 0 && occurrence >= r.MaxOccurrences {
		return Next{}, false
	}

	rec := r.clone()
	if rec.AnchorOccurrence == 0 || (rec.AnchorStart == nil && rec.AnchorDue == nil) {
		rec.Anchor(occurrence, start, due)
	}
	if rec.AnchorStart == nil && rec.AnchorDue == nil {
		day := time.Date(terminalAt.Year(), terminalAt.Month(), terminalAt.Day(), 0, 0, 0, 0, time.UTC)
		rec.Anchor(occurrence, &day, nil)
	}

	steps := occurrence + 1 - rec.AnchorOccurrence
	next := Next{Occurrence: occurrence + 1, Recurrence: rec}
	if rec.AnchorStart != nil {
		v := rec.Advance(*rec.AnchorStart, steps)
		next.EstimatedStartDate = &v
	}
	if rec.AnchorDue != nil {
		v := rec.Advance(*rec.AnchorDue, steps)
		next.DueDate = &v
	}

	if rec.EndDate != nil {
		ref := next.EstimatedStartDate
		if ref == nil {
			ref = next.DueDate
		}
		if ref != nil && ref.After(*rec.EndDate) {
			return Next{}, false
		}
	}
	return next, true
}
