// Package calendar owns the mapping from instants to calendar day-keys.
// Every component that needs a day boundary goes through here so that two
// users in different timezones bucket the same instant differently, and
// nothing else in the codebase recomputes day boundaries.
package calendar

import (
	"fmt"
	"time"
)

// DayKeyLayout is the canonical YYYY-MM-DD form used as a storage key.
const DayKeyLayout = "2006-01-02"

// DayKey formats the calendar day containing t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayKeyLayout)
}

// ParseDayKey parses a day-key back into midnight of that day in loc.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DayKeyLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day key %q: %w", key, err)
	}
	return t, nil
}

// WeekDays returns the day-keys of the week containing reference, starting
// from Sunday. With wholeWeek the full 7 days come back; without it the
// sequence stops at reference inclusive, giving the "this week so far"
// view.
func WeekDays(reference time.Time, loc *time.Location, wholeWeek bool) []string {
	ref := reference.In(loc)
	sunday := ref.AddDate(0, 0, -int(ref.Weekday()))

	n := 7
	if !wholeWeek {
		n = int(ref.Weekday()) + 1
	}

	days := make([]string, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, DayKey(sunday.AddDate(0, 0, i), loc))
	}
	return days
}

// MonthDays returns the day-keys of the given month in order, truncated at
// the day containing now. Months entirely in the future yield no keys; past
// months come back complete.
func MonthDays(year int, month time.Month, now time.Time, loc *time.Location) []string {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	today := DayKey(now, loc)

	var days []string
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		key := DayKey(d, loc)
		if key > today {
			break
		}
		days = append(days, key)
	}
	return days
}
