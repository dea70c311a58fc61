package model

import "time"

// Entry is one day's completion record for a habit. Day carries no time
// component: it is always midnight UTC of the calendar day it stands for.
type Entry struct {
	ID      int       `json:"id"`
	HabitID int       `json:"habit_id"`
	Day     time.Time `json:"day"`
	Done    bool      `json:"done"`
}
