// Package recurrence expands lesson schedules into concrete occurrence dates.
package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for occurrences.
const DateLayout = "2006-01-02"

// MaxWindowDays bounds the number of days a single expansion may cover.
const MaxWindowDays = 92

// Rule describes when a lesson takes place. A rule with a specific date
// occurs once; a rule with a weekday (1 = Monday .. 7 = Sunday) occurs every
// week; a rule with neither occurs every day.
type Rule struct {
	DayOfWeek    *int
	SpecificDate *string
}

// Engine expands rules into occurrence dates.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that interprets dates in loc.
// If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// ErrInvalidDate indicates a date is not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("recurrence: invalid date")

// ErrInvalidWindow indicates the window end precedes its start or exceeds MaxWindowDays.
var ErrInvalidWindow = errors.New("recurrence: invalid generation window")

// ErrInvalidRule indicates the rule carries an out-of-range weekday or a malformed date.
var ErrInvalidRule = errors.New("recurrence: invalid rule")

// ParseDate parses a YYYY-MM-DD date at midnight in the engine's location.
func (e *Engine) ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, e.loc())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// Today returns the calendar date of now in the engine's location.
func (e *Engine) Today(now time.Time) string {
	return now.In(e.loc()).Format(DateLayout)
}

// Matches reports whether the rule occurs on date.
func (e *Engine) Matches(rule Rule, date string) (bool, error) {
	day, err := e.ParseDate(date)
	if err != nil {
		return false, err
	}
	return e.matches(rule, day)
}

// Occurrences returns every date in [from, to] on which the rule occurs, in
// chronological order.
//
// The engine enforces the following semantics:
//   - Both bounds are inclusive calendar dates in the engine's location.
//   - The window may not span more than MaxWindowDays days.
//   - A specific date takes precedence over a weekday when both are set.
func (e *Engine) Occurrences(rule Rule, from, to string) ([]string, error) {
	start, err := e.ParseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := e.ParseDate(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidWindow, to, from)
	}
	if days := daysBetween(start, end) + 1; days > MaxWindowDays {
		return nil, fmt.Errorf("%w: %d days exceeds %d", ErrInvalidWindow, days, MaxWindowDays)
	}

	if rule.SpecificDate != nil {
		day, err := e.ParseDate(*rule.SpecificDate)
		if err != nil {
			return nil, fmt.Errorf("%w: specific date %q", ErrInvalidRule, *rule.SpecificDate)
		}
		if day.Before(start) || day.After(end) {
			return []string{}, nil
		}
		return []string{day.Format(DateLayout)}, nil
	}

	dates := make([]string, 0)
	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		ok, err := e.matches(rule, current)
		if err != nil {
			return nil, err
		}
		if ok {
			dates = append(dates, current.Format(DateLayout))
		}
	}
	return dates, nil
}

func (e *Engine) matches(rule Rule, day time.Time) (bool, error) {
	if rule.SpecificDate != nil {
		specific, err := e.ParseDate(*rule.SpecificDate)
		if err != nil {
			return false, fmt.Errorf("%w: specific date %q", ErrInvalidRule, *rule.SpecificDate)
		}
		return specific.Equal(day), nil
	}
	if rule.DayOfWeek != nil {
		weekday, err := Weekday(*rule.DayOfWeek)
		if err != nil {
			return false, err
		}
		return day.Weekday() == weekday, nil
	}
	return true, nil
}

func (e *Engine) loc() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// Weekday converts an ISO day number (1 = Monday .. 7 = Sunday) to a time.Weekday.
func Weekday(isoDay int) (time.Weekday, error) {
	if isoDay < 1 || isoDay > 7 {
		return 0, fmt.Errorf("%w: day of week %d", ErrInvalidRule, isoDay)
	}
	return time.Weekday(isoDay % 7), nil
}

// daysBetween counts calendar days between two dates, ignoring DST shifts.
func daysBetween(start, end time.Time) int {
	y1, m1, d1 := start.Date()
	y2, m2, d2 := end.Date()
	from := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	to := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
