// Package recurrence decides when a recurring query entry is due for a refresh.
package recurrence

import (
	"time"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

const minutesPerHour = 60

// Evaluator evaluates recurrence rules in a fixed time zone.
type Evaluator struct {
	loc *time.Location
}

// NewEvaluator creates an evaluator. A nil location means UTC.
func NewEvaluator(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{loc: loc}
}

// IsDue reports whether spec calls for a refresh at now given the previous run.
// It has no side effects; the caller records lastRun after a successful refresh.
// A nil spec is never due. A nil lastRun is always due.
func (e *Evaluator) IsDue(spec *domain.RecurrenceSpec, lastRun *time.Time, now time.Time) bool {
	if spec == nil {
		return false
	}
	if lastRun == nil {
		return true
	}

	last := lastRun.In(e.loc)
	now = now.In(e.loc)

	switch spec.Shape {
	case domain.RecurrenceEveryNMinutes:
		return now.Sub(last) >= time.Duration(deref(spec.Interval))*time.Minute
	case domain.RecurrenceEveryNHours:
		return now.Sub(last) >= time.Duration(deref(spec.Interval))*time.Hour
	case domain.RecurrenceDaily:
		return !sameDate(now, last) && reachedTimeOfDay(now, spec)
	case domain.RecurrenceWeekly:
		return !sameDate(now, last) &&
			isoWeekday(now) == deref(spec.Weekday) &&
			reachedTimeOfDay(now, spec)
	case domain.RecurrenceMonthly:
		return e.monthlyDue(spec, last, now)
	default:
		return false
	}
}

// monthlyDue fires once the first scheduled instant after the last run has
// been reached. Missed months after an outage collapse into a single run.
func (e *Evaluator) monthlyDue(spec *domain.RecurrenceSpec, last, now time.Time) bool {
	return !e.nextMonthly(spec, last).After(now)
}

// nextMonthly returns the first scheduled instant strictly after last.
func (e *Evaluator) nextMonthly(spec *domain.RecurrenceSpec, last time.Time) time.Time {
	scheduled := ScheduledInMonth(last.Year(), last.Month(), spec, e.loc)
	if scheduled.After(last) {
		return scheduled
	}
	year, month := last.Year(), last.Month()+1
	if month > time.December {
		month = time.January
		year++
	}
	return ScheduledInMonth(year, month, spec, e.loc)
}

// ScheduledInMonth returns the monthly rule's instant in the given month.
// A day past the end of the month is clamped to the month's last day.
func ScheduledInMonth(year int, month time.Month, spec *domain.RecurrenceSpec, loc *time.Location) time.Time {
	day := min(deref(spec.DayOfMonth), daysIn(year, month, loc))
	return time.Date(year, month, day, deref(spec.Hour), deref(spec.Minute), 0, 0, loc)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func reachedTimeOfDay(now time.Time, spec *domain.RecurrenceSpec) bool {
	return now.Hour()*minutesPerHour+now.Minute() >= deref(spec.Hour)*minutesPerHour+deref(spec.Minute)
}

// isoWeekday maps Sunday to 7 so that Monday is 1.
func isoWeekday(t time.Time) int {
	if t.Weekday() == time.Sunday {
		return 7
	}
	return int(t.Weekday())
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
