// Package timeutil holds the calendar arithmetic used by streaks, daily
// challenges and periodic resets. Every calendar computation happens in UTC:
// a "day" for progression purposes is a UTC calendar date.
package timeutil

import (
	"fmt"
	"time"
)

// DateLayout is the canonical YYYY-MM-DD representation of a calendar date.
const DateLayout = "2006-01-02"

// StartOfDay truncates t to 00:00:00 UTC of its UTC calendar date.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NextMidnight returns the start of the UTC day after t.
func NextMidnight(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// StartOfWeek returns Monday 00:00 UTC of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// MonthBounds returns [first day, first day of next month) for year/month in UTC.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	start, end := MonthBounds(year, month)
	return int(end.Sub(start).Hours() / 24)
}

// DaysBetween returns the whole-day difference between the UTC calendar
// dates of from and to. Negative when to precedes from.
func DaysBetween(from, to time.Time) int {
	return int(StartOfDay(to).Sub(StartOfDay(from)).Hours() / 24)
}

// FormatDate renders t's UTC calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// DateSeed turns a YYYY-MM-DD string into the integer YYYYMMDD.
func DateSeed(date string) (int, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return t.Year()*10000 + int(t.Month())*100 + t.Day(), nil
}

// UntilMidnight formats the time left until the next UTC midnight as "Xh Ym".
func UntilMidnight(now time.Time) string {
	d := NextMidnight(now).Sub(now.UTC())
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
