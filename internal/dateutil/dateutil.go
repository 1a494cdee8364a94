// Package dateutil holds calendar arithmetic shared by the offer repository, filters
// and charts. Weeks start on Sunday, matching the 0-6 workday indices.
package dateutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// StartOfWeek returns the Sunday starting t's week.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// StartOfMonth returns the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// StartOfQuarter returns the first day of t's calendar quarter.
func StartOfQuarter(t time.Time) time.Time {
	y, m, _ := t.Date()
	first := time.Month((int(m)-1)/3*3 + 1)
	return time.Date(y, first, 1, 0, 0, 0, 0, t.Location())
}

// StartOfYear returns January 1st of t's year.
func StartOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

// Quarter returns 1-4.
func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// DaysBetween returns the number of calendar days from a to b, negative when b is
// before a. Time of day is ignored and DST shifts do not affect the result.
func DaysBetween(a, b time.Time) int {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// IsSameDay reports whether a and b fall on the same calendar day in a's location.
func IsSameDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 0
}

// IsToday reports whether t falls on now's calendar day.
func IsToday(t, now time.Time) bool {
	return DaysBetween(now, t) == 0
}

// CombineDateTime places the "HH:MM" clock time on date's day.
func CombineDateTime(date time.Time, clock string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time %q: expected HH:MM", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("invalid hour in %q", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid minute in %q", clock)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, date.Location()), nil
}

// FormatDate renders t as "Jan 2, 2006".
func FormatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

// FormatShort renders t as "Jan 2".
func FormatShort(t time.Time) string {
	return t.Format("Jan 2")
}

// FormatISODate renders t as "2006-01-02".
func FormatISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

// IsWorkday reports whether t's weekday is listed in workdays.
func IsWorkday(t time.Time, workdays []int) bool {
	wd := int(t.Weekday())
	for _, d := range workdays {
		if d == wd {
			return true
		}
	}
	return false
}

// Streak counts consecutive workdays, ending today, on which at least goal events
// happened. Non-workdays neither extend nor break the streak. Today only counts once
// the goal is met; an unfinished today does not break the streak.
func Streak(events []time.Time, goal int, workdays []int, now time.Time) int {
	if goal < 1 || len(workdays) == 0 || len(events) == 0 {
		return 0
	}

	counts := make(map[string]int, len(events))
	earliest := now
	for _, e := range events {
		e = e.In(now.Location())
		counts[FormatISODate(e)]++
		if e.Before(earliest) {
			earliest = e
		}
	}

	streak := 0
	day := StartOfDay(now)
	if IsWorkday(day, workdays) && counts[FormatISODate(day)] >= goal {
		streak++
	}
	day = day.AddDate(0, 0, -1)

	floor := StartOfDay(earliest)
	for !day.Before(floor) {
		if IsWorkday(day, workdays) {
			if counts[FormatISODate(day)] < goal {
				break
			}
			streak++
		}
		day = day.AddDate(0, 0, -1)
	}

	return streak
}
