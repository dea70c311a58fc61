package streak

import "time"

// DayLayout is the key format used by progress series.
const DayLayout = "2006-01-02"

// DateOf returns the calendar day t falls on in loc, as midnight UTC.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return civilDay(t.In(loc))
}

// civilDay drops the clock part of t without shifting zones, so a DATE
// column scanned in any location keeps its calendar day.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func addDays(day time.Time, n int) time.Time {
	return day.AddDate(0, 0, n)
}
