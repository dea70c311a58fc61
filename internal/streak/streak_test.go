package streak

import (
	"testing"
	"time"

	"habittracker/internal/model"

	"github.com/stretchr/testify/assert"
)

var today = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return today.AddDate(0, 0, offset)
}

func done(offsets ...int) []model.Entry {
	entries := make([]model.Entry, 0, len(offsets))
	for _, o := range offsets {
		entries = append(entries, model.Entry{HabitID: 1, Day: day(o), Done: true})
	}
	return entries
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name    string
		entries []model.Entry
		want    int
	}{
		{"no entries", nil, 0},
		{"only not-done entries", []model.Entry{
			{Day: day(0), Done: false},
			{Day: day(-1), Done: false},
		}, 0},
		{"single entry today", done(0), 1},
		{"single entry yesterday", done(-1), 1},
		{"single entry two days ago", done(-2), 0},
		{"single entry a week ago", done(-7), 0},
		{"five consecutive ending today", done(0, -1, -2, -3, -4), 5},
		{"three consecutive ending yesterday", done(-1, -2, -3), 3},
		{"gap after two days", done(0, -1, -3), 2},
		{"gap right after today", done(0, -2, -3), 1},
		{"unsorted input", done(-2, 0, -1), 3},
		{"future entry is ignored as a start", done(1), 0},
		{"not-done day breaks the run", []model.Entry{
			{Day: day(0), Done: true},
			{Day: day(-1), Done: false},
			{Day: day(-2), Done: true},
		}, 1},
		{"repeated day does not end the run", done(0, 0, -1), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(tt.entries, today))
		})
	}
}

func TestCalculate_ConsecutiveRunLengths(t *testing.T) {
	for n := 1; n <= 40; n++ {
		offsets := make([]int, n)
		for i := range offsets {
			offsets[i] = -i
		}
		assert.Equal(t, n, Calculate(done(offsets...), today), "run of %d days", n)
	}
}

func TestCalculate_IgnoresClockAndZone(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	entries := []model.Entry{
		{Day: time.Date(2024, 6, 10, 0, 0, 0, 0, loc), Done: true},
		{Day: time.Date(2024, 6, 9, 23, 59, 0, 0, time.UTC), Done: true},
	}
	assert.Equal(t, 2, Calculate(entries, today.Add(15*time.Hour)))
}

func TestCalculate_Scenario(t *testing.T) {
	entries := []model.Entry{
		{Day: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), Done: true},
		{Day: time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC), Done: true},
		{Day: time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC), Done: true},
	}
	assert.Equal(t, 2, Calculate(entries, today))
}

func TestDateOf(t *testing.T) {
	instant := time.Date(2024, 6, 10, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, today, DateOf(instant, nil))
	assert.Equal(t, today, DateOf(instant, time.UTC))
	assert.Equal(t, day(1), DateOf(instant, time.FixedZone("UTC+2", 2*3600)))
}
