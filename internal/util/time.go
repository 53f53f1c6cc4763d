package util

import "time"

// TruncateToDay strips the time component, keeping the calendar date in UTC.
func TruncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DefaultHistoricalStart returns the start of a full historical load: years
// back from now, truncated to a calendar date.
func DefaultHistoricalStart(now time.Time, years int) time.Time {
	return TruncateToDay(now.AddDate(-years, 0, 0))
}
