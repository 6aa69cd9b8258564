// Package calendar provides business-day deadline arithmetic.
//
// A business day is a calendar day that is neither a weekend day nor a
// configured holiday for the tenant in question. Deadline walks operate on
// whole calendar days in the location of the start instant; the at-risk
// threshold is a plain calendar-time interpolation between start and
// deadline.
package calendar

import (
	"time"

	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
)

// DefaultAtRiskPercent is the fraction of the start-to-deadline window after
// which a clock is considered at risk.
const DefaultAtRiskPercent = 0.80

// HolidaySet is a set of holiday dates keyed by YYYY-MM-DD.
type HolidaySet map[string]struct{}

// NewHolidaySet builds a holiday set from date strings. Blank entries are
// ignored.
func NewHolidaySet(dates ...string) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, date := range dates {
		if date == "" {
			continue
		}
		set[date] = struct{}{}
	}
	return set
}

// Merge returns a set containing the union of both holiday sets. Either
// operand may be nil.
func (h HolidaySet) Merge(other HolidaySet) HolidaySet {
	merged := make(HolidaySet, len(h)+len(other))
	for date := range h {
		merged[date] = struct{}{}
	}
	for date := range other {
		merged[date] = struct{}{}
	}
	return merged
}

// Contains reports whether the given instant falls on a holiday date.
func (h HolidaySet) Contains(at time.Time) bool {
	if len(h) == 0 {
		return false
	}
	_, ok := h[at.Format("2006-01-02")]
	return ok
}

// IsBusinessDay reports whether the given instant falls on a business day
// for the provided holiday set.
func IsBusinessDay(at time.Time, holidays HolidaySet) bool {
	switch at.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !holidays.Contains(at)
}

// AddBusinessDays returns the instant reached by walking forward from start
// until days business days have been consumed. Weekends and holiday dates do
// not consume a day. days == 0 returns start unchanged.
func AddBusinessDays(start time.Time, days int, holidays HolidaySet) (time.Time, error) {
	if days < 0 {
		return time.Time{}, domainerrors.New(domainerrors.CodeCalendarNegativeDays, "business day count must not be negative")
	}
	current := start
	remaining := days
	for remaining > 0 {
		current = current.AddDate(0, 0, 1)
		if IsBusinessDay(current, holidays) {
			remaining--
		}
	}
	return current, nil
}

// AtRiskThreshold returns the instant that is percent of the way from start
// to deadline in calendar time. The interpolation is deliberately not
// business-day aware: the threshold is a proportion of elapsed wall-clock
// duration.
func AtRiskThreshold(start, deadline time.Time, percent float64) (time.Time, error) {
	if percent <= 0 || percent > 1 {
		return time.Time{}, domainerrors.New(domainerrors.CodeCalendarBadPercent, "at-risk percent must be in (0, 1]")
	}
	if deadline.Before(start) {
		return time.Time{}, domainerrors.New(domainerrors.CodeSlaClockDeadlineInvalid, "deadline precedes start")
	}
	window := deadline.Sub(start)
	return start.Add(time.Duration(float64(window) * percent)), nil
}
