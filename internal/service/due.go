package service

import (
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Unpadded parts are accepted on input; storage always uses the padded layouts.
var (
	dateInputLayouts  = []string{"2006-1-2"}
	clockInputLayouts = []string{"15:4", "15:4:5"}
)

// ParseDue turns the raw due date (YYYY-MM-DD) and time (HH:MM) strings into an instant in loc.
// Anything that does not name a real calendar day and clock time yields false.
func ParseDue(date, clock string, loc *time.Location) (time.Time, bool) {
	day, ok := ParseDueDate(date, loc)
	if !ok {
		return time.Time{}, false
	}
	at, ok := parseClock(clock)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), at.Hour(), at.Minute(), 0, 0, loc), true
}

// ParseDueDate parses a YYYY-MM-DD string (unpadded parts allowed) at midnight in loc.
func ParseDueDate(date string, loc *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(date)
	for _, layout := range dateInputLayouts {
		if t, err := time.ParseInLocation(layout, date, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDueDate returns the zero-padded form of a valid due date.
func NormalizeDueDate(date string, loc *time.Location) (string, bool) {
	t, ok := ParseDueDate(date, loc)
	if !ok {
		return "", false
	}
	return t.Format(dateLayout), true
}

// NormalizeDueTime returns the zero-padded HH:MM form of a valid clock time.
func NormalizeDueTime(clock string) (string, bool) {
	t, ok := parseClock(clock)
	if !ok {
		return "", false
	}
	return t.Format(clockLayout), true
}

func parseClock(clock string) (time.Time, bool) {
	clock = strings.TrimSpace(clock)
	for _, layout := range clockInputLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
