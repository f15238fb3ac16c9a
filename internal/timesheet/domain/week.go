// Package domain holds the timesheet aggregate and the rules that keep it
// consistent: week bucketing, overlap detection and the caller model.
package domain

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date truncates t to midnight of its calendar day, keeping the location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStart returns the Monday of the week t belongs to.
func WeekStart(t time.Time) time.Time {
	sinceMonday := (int(t.Weekday()) + 6) % 7
	return Date(t).AddDate(0, 0, -sinceMonday)
}

// WeekEnd returns the Sunday closing the week t belongs to.
func WeekEnd(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 6)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return Date(a).Equal(Date(b))
}
