package streak

import (
	"sort"
	"time"

	"habittracker/internal/model"
)

// Calculate returns the number of consecutive calendar days ending today or
// yesterday that have a done entry.
//
// Input order is irrelevant. The run may start yesterday so that a streak
// survives until the user logs today; after that every day must be covered.
// A gap of one or more days ends the run.
func Calculate(entries []model.Entry, today time.Time) int {
	days := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		if e.Done {
			days = append(days, civilDay(e.Day))
		}
	}
	if len(days) == 0 {
		return 0
	}

	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	today = civilDay(today)
	yesterday := addDays(today, -1)
	if !days[0].Equal(today) && !days[0].Equal(yesterday) {
		return 0
	}

	streak := 0
	cursor := today
	var last time.Time
	for _, day := range days {
		if streak > 0 && day.Equal(last) {
			// one entry per day is a store invariant; tolerate a repeat
			continue
		}
		if day.Equal(cursor) || (streak == 0 && day.Equal(addDays(cursor, -1))) {
			streak++
			last = day
			cursor = addDays(day, -1)
			continue
		}
		break
	}
	return streak
}
