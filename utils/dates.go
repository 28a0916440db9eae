// utils/dates.go
package utils

import "time"

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// BeginningOfWeek returns Monday 00:00 of t's week.
func BeginningOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return BeginningOfDay(t).AddDate(0, 0, -offset)
}

func BeginningOfMonth(t time.Time) time.Time {
	year, month, _ := t.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
}

// InRange reports whether t falls in [from, to]. Nil bounds are open.
func InRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

// ParseDate accepts RFC3339 or plain yyyy-mm-dd and the common dd/mm/yyyy
// spreadsheet format.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "02/01/2006", "02-01-2006"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
